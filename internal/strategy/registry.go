package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"intrabt/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type fileEntry struct {
	Name         string `mapstructure:"name" yaml:"name"`
	Description  string `mapstructure:"description" yaml:"description"`
	SystemPrompt string `mapstructure:"system_prompt" yaml:"system_prompt"`
}

type fileConfig struct {
	Strategies map[string]fileEntry `mapstructure:"strategies" yaml:"strategies"`
}

// Snapshot 当前已加载的策略集合。
type Snapshot struct {
	LoadedAt   time.Time
	Strategies map[string]Strategy
}

// Registry 从 YAML 文件加载策略提示词，并监听文件变更热加载。
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRegistry 读取策略文件并开始监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy registry 需要文件路径")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取策略文件失败: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("策略文件重载失败: %v", err)
			return
		}
		logger.Infof("策略文件已重载: %s", evt.Name)
	})
	v.WatchConfig()
	return r, nil
}

func (r *Registry) reload() error {
	var cfg fileConfig
	if err := r.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("解析策略文件失败: %w", err)
	}
	if len(cfg.Strategies) == 0 {
		return fmt.Errorf("策略文件 %s 未定义任何策略", r.path)
	}
	strategies := make(map[string]Strategy, len(cfg.Strategies))
	for id, entry := range cfg.Strategies {
		s := Strategy{
			ID:           strings.ToUpper(strings.TrimSpace(id)),
			Name:         entry.Name,
			Description:  entry.Description,
			SystemPrompt: entry.SystemPrompt,
		}
		if err := s.validate(); err != nil {
			return err
		}
		strategies[s.ID] = s
	}
	r.mu.Lock()
	r.snapshot = Snapshot{LoadedAt: time.Now(), Strategies: strategies}
	r.mu.Unlock()
	return nil
}

// Get 返回指定 ID 的策略。
func (r *Registry) Get(id string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snapshot.Strategies[strings.ToUpper(strings.TrimSpace(id))]
	return s, ok
}

// All 返回全部策略（按 ID 排序，保证回测顺序稳定）。
func (r *Registry) All() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(r.snapshot.Strategies))
	for _, s := range r.snapshot.Strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Dump 导出归一化后的策略定义（用于报表的配置页）。
func (r *Registry) Dump() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make(map[string]fileEntry, len(r.snapshot.Strategies))
	for id, s := range r.snapshot.Strategies {
		entries[id] = fileEntry{Name: s.Name, Description: s.Description, SystemPrompt: s.SystemPrompt}
	}
	b, err := yaml.Marshal(fileConfig{Strategies: entries})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
