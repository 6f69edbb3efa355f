// Package state defines the program-wide environment carried through a
// context.Context, rather than as package-level globals.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ereader/config"
)

type envKey struct{}

// LocalEnv keeps everything a command invocation needs in one place:
// resolved configuration, the logger, and an optional debug report bundle.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// CacheRoot overrides Cfg.Cache.Root when set from a command-line flag.
	CacheRoot string
	// Debug requests a debug report bundle alongside the requested operation.
	Debug bool

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
