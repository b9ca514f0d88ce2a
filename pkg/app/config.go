package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，DUNGEON_QUOTA_DRIVER 对应 quota.driver
const EnvPrefix = "DUNGEON"

// Flags 启动参数
type Flags struct {
	ConfigPath  string
	ShowVersion bool

	set *pflag.FlagSet
}

// ParseFlags 解析命令行参数
//
// --config 未指定时依次取 DUNGEON_CONFIG 与可执行文件同目录下的 config.yaml。
func ParseFlags(args []string) (*Flags, error) {
	execDir, err := GetExecDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable directory: %w", err)
	}

	f := &Flags{set: pflag.NewFlagSet(filepath.Base(os.Args[0]), pflag.ContinueOnError)}
	f.set.StringVarP(&f.ConfigPath, "config", "c", filepath.Join(execDir, "config.yaml"), "path to config file")
	f.set.BoolVarP(&f.ShowVersion, "version", "v", false, "print version and exit")
	f.set.String("log.path", filepath.Join(execDir, "logs", "app.log"), "output path for file logs")

	if err := f.set.Parse(args); err != nil {
		return nil, err
	}
	if !f.set.Changed("config") {
		if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
			f.ConfigPath = env
		}
	}
	return f, nil
}

// LoadConfig 加载配置到 target，返回的 Manager 用于监听文件变化
//
// 优先级：命令行参数 > 环境变量 > 配置文件 > 参数默认值。
func LoadConfig(target any, flags *Flags, opts ...config.Option) (config.Manager, error) {
	if _, err := os.Stat(flags.ConfigPath); err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigFileNotFound, flags.ConfigPath)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlag("log.output_path", flags.set.Lookup("log.path")); err != nil {
		return nil, err
	}
	// 显式指定日志路径即开启文件输出
	if flags.set.Changed("log.path") {
		v.Set("log.enable_file", true)
	}

	mgr := config.NewManager(append(opts, config.WithViper(v))...)
	if err := mgr.LoadFile(flags.ConfigPath); err != nil {
		return nil, err
	}
	if err := mgr.Unmarshal(target); err != nil {
		return nil, err
	}

	if v.GetBool("log.enable_file") {
		if err := os.MkdirAll(filepath.Dir(v.GetString("log.output_path")), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	return mgr, nil
}

// GetExecDir 可执行文件所在目录，跟随符号链接
func GetExecDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return filepath.Dir(execPath), nil
}
