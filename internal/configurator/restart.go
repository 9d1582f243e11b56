package configurator

import (
	"fmt"
	"strings"
	"time"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/executor"
	"github.com/ksyq12/nginxtls/internal/logger"
)

// Restart makes nginx pick up the configuration on disk. A running
// master process is reloaded; when the reload fails, usually because
// nginx is not running at all, the binary is started instead. After a
// successful reload the call pauses, because workers pick the new
// configuration up asynchronously and callers expect it to be live.
func Restart(exe executor.CommandExecutor, bin, rootConf string, pause time.Duration, sleepFn func(time.Duration)) error {
	if sleepFn == nil {
		sleepFn = time.Sleep
	}
	out, err := exe.Execute(bin, "-c", rootConf, "-s", "reload")
	if err != nil {
		logger.Debug("nginx reload failed, trying a fresh start: %s", strings.TrimSpace(string(out)))
		out, err = exe.Execute(bin, "-c", rootConf)
		if err != nil {
			return nxerrors.Misconfiguration(fmt.Sprintf("nginx restart failed:\n%s", out))
		}
	}
	sleepFn(pause)
	return nil
}

// ConfigTest asks nginx to validate the configuration rooted at
// rootConf without serving it.
func ConfigTest(exe executor.CommandExecutor, bin, rootConf string) error {
	out, err := exe.Execute(bin, "-c", rootConf, "-t")
	if err != nil {
		return nxerrors.Misconfiguration(fmt.Sprintf("nginx configuration check failed:\n%s", out))
	}
	return nil
}
