package bootstrap

import (
	"context"
	"fmt"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/config"
)

// WatchLogLevel 配置文件中的 log.level 变化时调整日志级别，ctx 取消后停止
func (a *App) WatchLogLevel(ctx context.Context, loader config.Loader) error {
	ch, err := loader.Watch(ctx, "log.level")
	if err != nil {
		return err
	}
	go func() {
		for ev := range ch {
			level, err := clog.ParseLevel(fmt.Sprint(ev.Value))
			if err != nil {
				a.logger.Warn("ignore invalid log level", clog.Any("value", ev.Value), clog.Error(err))
				continue
			}
			if err := a.logger.SetLevel(level); err != nil {
				a.logger.Warn("set log level failed", clog.Error(err))
				continue
			}
			a.logger.Info("log level changed", clog.String("level", level.String()))
		}
	}()
	return nil
}
