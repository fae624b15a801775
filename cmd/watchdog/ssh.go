package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"

	"go-watchdog/internal/config"
	"go-watchdog/internal/tui"
)

// serveSSH exposes the dashboard to holders of an authorized key until ctx
// is done.
func serveSSH(ctx context.Context, cfg config.SSHConfig, deps tui.Deps, logger *log.Logger) error {
	s, err := wish.NewServer(
		wish.WithAddress(fmt.Sprintf(":%d", cfg.Port)),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithPublicKeyAuth(func(_ ssh.Context, key ssh.PublicKey) bool {
			data, err := os.ReadFile(cfg.AuthorizedKeysPath)
			if err != nil {
				logger.Warn("cannot read authorized keys", "path", cfg.AuthorizedKeysPath, "err", err)
				return false
			}
			return isKeyAllowed(data, key)
		}),
		wish.WithMiddleware(
			bm.Middleware(func(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
				logger.Info("dashboard session", "user", sess.User(), "remote", sess.RemoteAddr())
				return tui.InitialModel(deps), []tea.ProgramOption{tea.WithAltScreen()}
			}),
			activeterm.Middleware(),
		),
	)
	if err != nil {
		return fmt.Errorf("ssh server: %w", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	logger.Info("ssh dashboard listening", "addr", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return fmt.Errorf("ssh server: %w", err)
	}
	return nil
}

func isKeyAllowed(authFileData []byte, incomingKey ssh.PublicKey) bool {
	for len(authFileData) > 0 {
		allowedKey, _, _, rest, err := ssh.ParseAuthorizedKey(authFileData)
		if err != nil {
			return false
		}
		if ssh.KeysEqual(allowedKey, incomingKey) {
			return true
		}
		authFileData = rest
	}
	return false
}
