package cmd

import (
	"os"

	"github.com/spf13/cobra"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
	"github.com/cloudposse/link-install/pkg/journal"
	"github.com/cloudposse/link-install/pkg/lock"
	log "github.com/cloudposse/link-install/pkg/logger"
)

func newRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Revert the changes of a link install that was killed before it could roll back",
		Long: `Replays the crash journal of the install directory: every file a killed run modified is restored ` +
			`and every file it created is removed. Does nothing when the last run finished cleanly.`,
		Example: "link-install recover -i build",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return recoverInstallDir(linkConfig.InstallDir)
		},
	}
}

func recoverInstallDir(installDir string) error {
	path, err := journal.PathFor(installDir)
	if err != nil {
		return errUtils.Build(errUtils.ErrJournalOpen).WithCause(err).Err()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info("Nothing to recover", "install_dir", installDir)
		return nil
	}

	lockPath, err := lock.PathFor(installDir)
	if err != nil {
		return errUtils.Build(errUtils.ErrInstallDirLocked).WithCause(err).Err()
	}
	runLock, err := lock.Acquire(lockPath)
	if err != nil {
		return err
	}
	defer runLock.Release()

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := j.Close(); err != nil {
			log.Warn("Failed to close undo journal", "path", path, "error", err)
		}
	}()

	if recorded, err := j.InstallDir(); err == nil && recorded != "" && recorded != installDir {
		log.Warn("Journal belongs to another install directory", "journal", recorded, "install_dir", installDir)
	}

	recovered, err := j.Recover(filesystem.NewOSFileSystem())
	log.Info("Recovered link install", "install_dir", installDir, "actions", recovered)
	return err
}
