package playwright

import (
	"fmt"
	"os"

	pw "github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// EnsureRuntime installs the playwright driver and a Chromium build if
// they are missing. Set STUDIOGRAB_SKIP_INSTALL to skip the check on
// machines where the runtime is provisioned out of band.
func EnsureRuntime(log *zap.Logger) error {
	if os.Getenv("STUDIOGRAB_SKIP_INSTALL") != "" {
		log.Debug("skipping playwright runtime check")
		return nil
	}
	log.Info("ensuring playwright runtime is installed")
	if err := pw.Install(&pw.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return fmt.Errorf("installing playwright runtime: %w", err)
	}
	return nil
}
