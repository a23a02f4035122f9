package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	auditMu  sync.Mutex
	auditLog *log.Logger
)

// SetAuditWriter 设置模拟审计日志输出（被跳过的信号、成交明细等），nil 表示关闭。
func SetAuditWriter(w io.Writer) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if w == nil {
		auditLog = nil
		return
	}
	auditLog = log.New(w, "", log.LstdFlags)
}

// Auditf 写入一条审计记录，带 run 标识前缀。未配置 writer 时为 no-op。
func Auditf(runID, kind, format string, v ...any) {
	auditMu.Lock()
	l := auditLog
	auditMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[audit]")
	if runID != "" {
		b.WriteString("[")
		b.WriteString(runID)
		b.WriteString("]")
	}
	if kind != "" {
		b.WriteString("[")
		b.WriteString(kind)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(format)
	l.Printf(b.String(), v...)
}
