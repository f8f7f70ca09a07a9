package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取主配置，叠加可选的 include 覆盖片段，应用默认值后做启动期校验。
// 字段显式写了什么（哪怕是 0）就不再套默认值，见 keySet。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v, err := readLayered(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}

	setKeys := make(keySet)
	for _, key := range v.AllKeys() {
		setKeys.mark(key)
	}
	cfg.applyDefaults(setKeys)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readLayered 把主文件 `include:` 列出的片段按声明顺序合并，主文件最后合并，
// 冲突时后写的覆盖先写的。片段只允许一层：片段自己再写 include 直接报错，
// 两三个文件的配置目录用不上递归链。
func readLayered(path string) (*viper.Viper, error) {
	main := viper.New()
	main.SetConfigFile(path)
	if err := main.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}

	merged := viper.New()
	merged.SetConfigType("yaml")
	dir := filepath.Dir(path)
	for _, inc := range main.GetStringSlice("include") {
		inc = strings.TrimSpace(inc)
		if inc == "" {
			continue
		}
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(dir, inc)
		}
		part := viper.New()
		part.SetConfigFile(inc)
		if err := part.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading include failed (%s): %w", inc, err)
		}
		if part.IsSet("include") {
			return nil, fmt.Errorf("nested include not supported (%s)", inc)
		}
		if err := merged.MergeConfigMap(part.AllSettings()); err != nil {
			return nil, err
		}
	}
	if err := merged.MergeConfigMap(main.AllSettings()); err != nil {
		return nil, err
	}
	return merged, nil
}
