package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"taskdesk/internal/schema"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "taskdesk.db"
	DefaultLogName        = "taskdesk.log"
	DefaultExportDir      = "exports"
	DefaultPageSize       = 5
	DefaultSaveDebounce   = "500ms"

	appDir    = "taskdesk"
	envConfig = "TASKDESK_CONFIG"
)

type Keymap struct {
	Quit        string `toml:"quit"`
	Add         string `toml:"add"`
	Up          string `toml:"up"`
	Down        string `toml:"down"`
	NextPage    string `toml:"next_page"`
	PrevPage    string `toml:"prev_page"`
	Filter      string `toml:"filter"`
	Delete      string `toml:"delete"`
	Clear       string `toml:"clear"`
	Detail      string `toml:"detail"`
	Confirm     string `toml:"confirm"`
	Cancel      string `toml:"cancel"`
	Edit        string `toml:"edit"`
	Import      string `toml:"import"`
	ExportSheet string `toml:"export_sheet"`
	ExportDoc   string `toml:"export_doc"`
	Help        string `toml:"help"`
}

type Config struct {
	DBPath       string `toml:"db_path"`
	Schema       string `toml:"schema"`
	PageSize     int    `toml:"page_size"`
	ExportDir    string `toml:"export_dir"`
	SheetTitle   string `toml:"sheet_title"`
	SaveDebounce string `toml:"save_debounce"`
	LogFile      string `toml:"log_file"`
	LogLevel     string `toml:"log_level"`
	Keys         Keymap `toml:"keys"`
}

// ResolveConfigPath returns $TASKDESK_CONFIG when set, otherwise
// <user config dir>/taskdesk/config.toml. Falls back to the working
// directory when no config dir is known.
func ResolveConfigPath() string {
	if p := os.Getenv(envConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, appDir, DefaultConfigFileName)
}

// LoadOrCreate reads path, writing the defaults there first when the file
// does not exist. Relative db, log and export paths resolve against the
// config file's directory.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg.resolve(filepath.Dir(path)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.resolve(filepath.Dir(path)), nil
}

// Validate checks the values that cannot be defaulted silently.
func (c Config) Validate() error {
	if _, err := schema.Lookup(c.Schema); err != nil {
		return err
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if _, err := c.Debounce(); err != nil {
		return err
	}
	return nil
}

// Debounce parses SaveDebounce.
func (c Config) Debounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.SaveDebounce)
	if err != nil {
		return 0, fmt.Errorf("save_debounce: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("save_debounce must not be negative, got %s", d)
	}
	return d, nil
}

func (c *Config) fill() {
	def := defaultConfig()
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.Schema == "" {
		c.Schema = def.Schema
	}
	if c.PageSize == 0 {
		c.PageSize = def.PageSize
	}
	if c.ExportDir == "" {
		c.ExportDir = def.ExportDir
	}
	if c.SaveDebounce == "" {
		c.SaveDebounce = def.SaveDebounce
	}
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.Keys.fill(def.Keys)
}

func (k *Keymap) fill(def Keymap) {
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	set(&k.Quit, def.Quit)
	set(&k.Add, def.Add)
	set(&k.Up, def.Up)
	set(&k.Down, def.Down)
	set(&k.NextPage, def.NextPage)
	set(&k.PrevPage, def.PrevPage)
	set(&k.Filter, def.Filter)
	set(&k.Delete, def.Delete)
	set(&k.Clear, def.Clear)
	set(&k.Detail, def.Detail)
	set(&k.Confirm, def.Confirm)
	set(&k.Cancel, def.Cancel)
	set(&k.Edit, def.Edit)
	set(&k.Import, def.Import)
	set(&k.ExportSheet, def.ExportSheet)
	set(&k.ExportDoc, def.ExportDoc)
	set(&k.Help, def.Help)
}

func (c Config) resolve(base string) Config {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.DBPath = abs(c.DBPath)
	c.LogFile = abs(c.LogFile)
	c.ExportDir = abs(c.ExportDir)
	return c
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func Default() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		DBPath:       DefaultDBName,
		Schema:       schema.ProjectName,
		PageSize:     DefaultPageSize,
		ExportDir:    DefaultExportDir,
		SheetTitle:   "Tasks",
		SaveDebounce: DefaultSaveDebounce,
		LogFile:      DefaultLogName,
		LogLevel:     "info",
		Keys: Keymap{
			Quit:        "q",
			Add:         "a",
			Up:          "k",
			Down:        "j",
			NextPage:    "l",
			PrevPage:    "h",
			Filter:      "/",
			Delete:      "d",
			Clear:       "D",
			Detail:      "v",
			Confirm:     "enter",
			Cancel:      "esc",
			Edit:        "e",
			Import:      "i",
			ExportSheet: "x",
			ExportDoc:   "w",
			Help:        "?",
		},
	}
}
