package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"stratlab/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
)

// Snapshot 当前编译好的信号 schema 快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Schema   *jsonschema.Schema
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(Snapshot)

// Registry 管理信号数据集的 JSON Schema：从 YAML 配置编译，支持热更新。
type Registry struct {
	path string

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取 schema 配置并编译。path 为空时使用内置默认 schema。
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload 重新读取并编译 schema。
func (r *Registry) Reload() error {
	data, err := r.loadDocument()
	if err != nil {
		return err
	}
	compiled, err := compileSchema(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Schema:   compiled,
	}
	snap := r.snapshot
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

func (r *Registry) loadDocument() (map[string]any, error) {
	if r.path == "" {
		return DefaultDocument(), nil
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取 signal schema 配置失败 (%s): %w", r.path, err)
	}
	data := v.GetStringMap("signal_schema")
	if len(data) == 0 {
		return nil, fmt.Errorf("signal schema 配置缺少 signal_schema 节点: %s", r.path)
	}
	return data, nil
}

// Snapshot 返回当前快照。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// OnChange 注册重载回调。
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Validate 用当前 schema 校验已解码的文档。
func (r *Registry) Validate(doc any) error {
	snap := r.Snapshot()
	if snap.Schema == nil {
		return fmt.Errorf("signal schema 未编译")
	}
	if err := snap.Schema.Validate(doc); err != nil {
		return fmt.Errorf("signal document schema validation failed: %w", err)
	}
	return nil
}

// ValidateJSON 校验原始 JSON 文档。
func (r *Registry) ValidateJSON(raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("signal document is not valid JSON: %w", err)
	}
	return r.Validate(doc)
}

// Watch 监听 schema 文件变更并自动重载，直到 ctx 结束。path 为空时 no-op。
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(r.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.Reload(); err != nil {
					logger.Warnf("[schema] 重载失败: %v", err)
					continue
				}
				logger.Infof("[schema] signal schema 已重载 (version=%d)", r.Snapshot().Version)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("[schema] watcher 错误: %v", err)
			}
		}
	}()
	return nil
}

func compileSchema(data map[string]any) (*jsonschema.Schema, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("序列化 schema 失败: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("signals.json", bytes.NewReader(buf)); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile("signals.json")
	if err != nil {
		return nil, fmt.Errorf("编译 signal schema 失败: %w", err)
	}
	return compiled, nil
}

// DefaultDocument 内置的信号数据集 schema：对象数组，四个必备列，
// signal 限定 BUY/SELL/HOLD，position_size 限定 [0,1]。
func DefaultDocument() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":     "object",
			"required": []any{"timestamp", "symbol", "signal", "position_size"},
			"properties": map[string]any{
				"timestamp": map[string]any{"type": "integer", "minimum": 1},
				"symbol":    map[string]any{"type": "string", "minLength": 1},
				"signal":    map[string]any{"enum": []any{"BUY", "SELL", "HOLD"}},
				"position_size": map[string]any{
					"type":    "number",
					"minimum": 0,
					"maximum": 1,
				},
			},
		},
	}
}
