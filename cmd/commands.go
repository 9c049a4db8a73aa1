package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mdobak/go-xerrors"

	"github.com/siahsang/beatpost/internal/auth"
	"github.com/siahsang/beatpost/internal/forms"
	"github.com/siahsang/beatpost/internal/imaging"
	"github.com/siahsang/beatpost/internal/notify"
)

type loginFlags struct {
	email    string
	password string
}

func (f *loginFlags) register(flags *flag.FlagSet) {
	flags.StringVar(&f.email, "email", "", "account email")
	flags.StringVar(&f.password, "password", os.Getenv("BEATPOST_PASSWORD"), "account password, defaults to $BEATPOST_PASSWORD")
}

// loginCommand stores a credential in the session store, so the next serve
// starts authenticated.
func (app *application) loginCommand(ctx context.Context, credentials loginFlags, stdout io.Writer) error {
	if err := forms.ValidateLogin(credentials.email, credentials.password); err != nil {
		return err
	}
	err := app.auth.Login(ctx, credentials.email, credentials.password)
	app.printNotifications(stdout)
	return err
}

func (app *application) logoutCommand(ctx context.Context, stdout io.Writer) error {
	app.auth.Logout(ctx)
	app.printNotifications(stdout)
	return nil
}

// whoamiCommand resolves the stored credential the same way serve does.
func (app *application) whoamiCommand(ctx context.Context, stdout io.Writer) error {
	app.auth.Start(ctx)
	snapshot := app.auth.Snapshot()
	app.printNotifications(stdout)

	if snapshot.State != auth.Authenticated {
		_, err := fmt.Fprintln(stdout, "not logged in")
		return err
	}
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "\t")
	return encoder.Encode(snapshot.Identity)
}

func (app *application) printNotifications(stdout io.Writer) {
	for _, n := range app.notifier.Drain() {
		prefix := "ok"
		switch n.Level {
		case notify.LevelError:
			prefix = "error"
		case notify.LevelInfo:
			prefix = "info"
		}
		fmt.Fprintf(stdout, "%s: %s\n", prefix, n.Message)
	}
}

// runGrayscale converts one image file the way post uploads are converted.
func runGrayscale(args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return xerrors.New("usage: beatpost grayscale <input image> <output.jpg>")
	}

	in, err := os.Open(args[0])
	if err != nil {
		return xerrors.Newf("open input: %w", err)
	}
	defer in.Close()

	data, err := imaging.ConvertToBW(in)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[1], data, 0o644); err != nil {
		return xerrors.Newf("write output: %w", err)
	}
	_, err = fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", args[1], len(data))
	return err
}
