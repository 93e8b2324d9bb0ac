// authctl консольный клиент сервиса авторизации
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"modulon/internal/client"
	"modulon/internal/watcher"
)

type cli struct {
	serverURL string
	email     string
	password  string
	in        *bufio.Reader
	out       io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{in: bufio.NewReader(in), out: out}
	root := &cobra.Command{
		Use:          "authctl",
		Short:        "Клиент сервиса авторизации",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.serverURL, "server", "http://localhost:5000", "адрес сервера")
	root.PersistentFlags().StringVar(&c.email, "email", "", "email аккаунта")
	root.PersistentFlags().StringVar(&c.password, "password", "", "пароль, если не задан, запрашивается в терминале")

	root.AddCommand(c.registerCommand(), c.verifyCommand(), c.loginCommand())
	return root
}

func (c *cli) registerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Зарегистрировать аккаунт",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireEmail(); err != nil {
				return err
			}
			api, err := c.client()
			if err != nil {
				return err
			}
			password, err := c.readPassword()
			if err != nil {
				return err
			}

			message, err := api.Register(cmd.Context(), c.email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, message)
			return nil
		},
	}
}

func (c *cli) verifyCommand() *cobra.Command {
	var resend bool
	cmd := &cobra.Command{
		Use:   "verify [token]",
		Short: "Подтвердить email кодом из письма",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.client()
			if err != nil {
				return err
			}

			if resend {
				if err := c.requireEmail(); err != nil {
					return err
				}
				if err := api.SendVerificationCode(cmd.Context(), c.email); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Verification code sent")
				return nil
			}
			if len(args) == 0 {
				return errors.New("не указан код подтверждения")
			}

			if err := api.VerifyEmail(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Email verified")
			return nil
		},
	}
	cmd.Flags().BoolVar(&resend, "resend", false, "отправить новый код на --email")
	return cmd
}

func (c *cli) loginCommand() *cobra.Command {
	var (
		watch bool
		lead  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Войти и показать текущую сессию",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireEmail(); err != nil {
				return err
			}
			api, err := c.client()
			if err != nil {
				return err
			}
			password, err := c.readPassword()
			if err != nil {
				return err
			}

			user, err := api.Login(cmd.Context(), c.email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Вход выполнен: %s (%s)\n", user.Email, user.Role)

			if !watch {
				return nil
			}
			return c.watch(cmd.Context(), api, lead)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "следить за сроком сессии и предлагать продление")
	cmd.Flags().DurationVar(&lead, "warn", watcher.DefaultWarningLead, "за сколько до истечения предупреждать")
	return cmd
}

// watch держит сессию открытой: перед истечением спрашивает, продлить ли ее
func (c *cli) watch(ctx context.Context, api *client.Client, lead time.Duration) error {
	info, err := api.Session(ctx)
	if err != nil {
		return err
	}

	prompts := make(chan *watcher.Prompt, 1)
	logouts := make(chan watcher.LogoutReason, 1)
	w := watcher.New(api, watcher.Config{
		WarningLead: lead,
		OnWarning: func(prompt *watcher.Prompt) {
			select {
			case prompts <- prompt:
			case <-ctx.Done():
			}
		},
		OnLogout: func(reason watcher.LogoutReason) {
			select {
			case logouts <- reason:
			default:
			}
		},
	})
	defer w.Stop()

	w.Observe(info.ExpiresAt)
	fmt.Fprintf(c.out, "Сессия действует до %s\n", info.ExpiresAt.Format(time.TimeOnly))

	answers := make(chan string)
	go func() {
		for {
			line, err := c.in.ReadString('\n')
			if err != nil {
				close(answers)
				return
			}
			answers <- strings.TrimSpace(line)
		}
	}()

	var pending *watcher.Prompt
	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-logouts:
			fmt.Fprintf(c.out, "Сессия завершена: %s\n", reason)
			return nil
		case prompt := <-prompts:
			pending = prompt
			fmt.Fprintf(c.out, "Сессия истекает через %s. Продлить? [y/n] ", prompt.Remaining().Round(time.Second))
		case answer, ok := <-answers:
			if !ok {
				answers = nil
				continue
			}
			if pending == nil {
				continue
			}
			prompt := pending
			pending = nil

			if !strings.EqualFold(answer, "y") {
				if err := prompt.Logout(ctx); err != nil && !errors.Is(err, watcher.ErrPromptExpired) {
					return err
				}
				continue
			}

			expiry, err := prompt.Extend(ctx)
			switch {
			case errors.Is(err, watcher.ErrPromptExpired):
				fmt.Fprintln(c.out, "Предложение устарело")
			case err != nil:
				fmt.Fprintf(c.out, "Не удалось продлить сессию: %v\n", err)
			default:
				fmt.Fprintf(c.out, "Сессия продлена до %s\n", expiry.Format(time.TimeOnly))
			}
		}
	}
}

func (c *cli) client() (*client.Client, error) {
	return client.New(c.serverURL, nil)
}

func (c *cli) requireEmail() error {
	if c.email == "" {
		return errors.New("не указан --email")
	}
	return nil
}

func (c *cli) readPassword() (string, error) {
	if c.password != "" {
		return c.password, nil
	}

	fmt.Fprint(c.out, "Пароль: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("ошибка чтения пароля: %w", err)
		}
		return string(password), nil
	}

	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("ошибка чтения пароля: %w", err)
	}
	return strings.TrimSpace(line), nil
}
