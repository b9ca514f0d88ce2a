package app

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// 构建时通过 -ldflags "-X github.com/lk2023060901/xdooria-dungeon/pkg/app.Version=v1.0.0" 注入
// 未注入的项从 Go 嵌入的构建信息中读取
var (
	Version   string
	GitCommit string
	BuildDate string
)

// Info 版本信息
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	// Dirty 构建时工作区有未提交修改
	Dirty     bool   `json:"dirty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo 获取当前二进制的版本信息
func GetInfo() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Version = or(info.Version, bi.Main.Version)
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.GitCommit = or(info.GitCommit, s.Value)
			case "vcs.time":
				info.BuildDate = or(info.BuildDate, s.Value)
			case "vcs.modified":
				info.Dirty = s.Value == "true"
			}
		}
	}

	info.Version = or(info.Version, "unknown")
	info.GitCommit = or(info.GitCommit, "unknown")
	info.BuildDate = or(info.BuildDate, "unknown")
	return info
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func (i Info) String() string {
	commit := i.GitCommit
	if i.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit %s, built %s, %s %s)", i.Version, commit, i.BuildDate, i.GoVersion, i.Platform)
}
