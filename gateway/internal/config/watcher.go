package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc 配置文件变更回调
type ReloadFunc func(cfg *Config)

/*
HotReloader 配置热更新器
功能：通过 fsnotify 监听配置文件所在目录，文件写入/替换后重新解析并通知订阅者。
编辑器保存时常见的「写临时文件再 rename」也能触发。
连续事件在 debounce 窗口内合并为一次重载。
*/
type HotReloader struct {
	path     string
	watchers []ReloadFunc
	mu       sync.RWMutex
	debounce time.Duration
	logger   *zap.Logger

	fsw      *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewHotReloader 创建配置热更新器
func NewHotReloader(path string) *HotReloader {
	return &HotReloader{
		path:     path,
		debounce: 500 * time.Millisecond,
		logger:   zap.L().Named("config-reload"),
		stopChan: make(chan struct{}),
	}
}

// Watch 注册配置监听器
func (r *HotReloader) Watch(fn ReloadFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

// Start 启动文件监听
func (r *HotReloader) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(r.path)); err != nil {
		fsw.Close()
		return err
	}
	r.fsw = fsw
	go r.loop()
	r.logger.Info("配置热更新已启动", zap.String("path", r.path))
	return nil
}

// Stop 停止监听
func (r *HotReloader) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		if r.fsw != nil {
			r.fsw.Close()
		}
	})
}

func (r *HotReloader) loop() {
	target := filepath.Clean(r.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case ev, ok := <-r.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			r.reload()
		case err, ok := <-r.fsw.Errors:
			if !ok {
				return
			}
			r.logger.Warn("配置文件监听错误", zap.Error(err))
		case <-r.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

/* reload 重新解析配置；解析失败时保留旧配置 */
func (r *HotReloader) reload() {
	cfg, err := LoadConfig(r.path)
	if err != nil {
		r.logger.Warn("配置重载失败，保留当前配置", zap.Error(err))
		return
	}

	r.mu.RLock()
	watchers := append([]ReloadFunc(nil), r.watchers...)
	r.mu.RUnlock()

	for _, w := range watchers {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("配置监听器 panic", zap.Any("panic", p))
				}
			}()
			w(cfg)
		}()
	}
	r.logger.Info("配置已重载", zap.Int("watchers", len(watchers)))
}
