package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"

	"objectstorage/internal/config"
	"objectstorage/internal/core/domain"
)

const usage = `usage: objectstorage <encrypt|decrypt|roundtrip> [flags]

  encrypt    -in plain -out cipher [-id id] [-master-key key]
  decrypt    -in cipher -out plain -id id -master-key key
  roundtrip  -in plain -out cipher -dec plain-copy [-id id] [-master-key key]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "objectstorage: %v\n", err)
		os.Exit(1)
	}
}

type cmdFlags struct {
	config    string
	id        string
	masterKey string
	in        string
	out       string
	dec       string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return domain.ArgumentError("missing command")
	}
	cmd := args[0]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f cmdFlags
	fs.StringVar(&f.config, "config", "", "YAML config file")
	fs.StringVar(&f.id, "id", "", "file id (default: new UUID)")
	fs.StringVar(&f.masterKey, "master-key", "", "master key (default: random 256-bit key)")
	fs.StringVar(&f.in, "in", "", "input file")
	fs.StringVar(&f.out, "out", "", "output file")
	if cmd == "roundtrip" {
		fs.StringVar(&f.dec, "dec", "", "decrypted copy")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch cmd {
	case "encrypt", "roundtrip":
		if f.id == "" {
			f.id = uuid.NewString()
		}
		if f.masterKey == "" {
			key, err := newMasterKey()
			if err != nil {
				return err
			}
			f.masterKey = key
			fmt.Fprintf(stdout, "master key: %s\n", key)
		}
	case "decrypt":
		if f.id == "" || f.masterKey == "" {
			return domain.ArgumentError("decrypt needs -id and -master-key")
		}
	default:
		fmt.Fprint(stderr, usage)
		return domain.ArgumentError("unknown command %q", cmd)
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "encrypt":
		return a.encrypt(ctx, f, stdout)
	case "decrypt":
		return a.decrypt(ctx, f, f.in, f.out, stdout)
	}
	if f.dec == "" {
		return domain.ArgumentError("roundtrip needs -dec")
	}
	if err := a.encrypt(ctx, f, stdout); err != nil {
		return err
	}
	return a.decrypt(ctx, f, f.out, f.dec, stdout)
}

func (a *app) encrypt(ctx context.Context, f cmdFlags, stdout io.Writer) error {
	svc, err := a.service(dirOf(f.out))
	if err != nil {
		return err
	}
	start := time.Now()
	err = svc.EncryptFile(ctx, domain.EncryptionRequest{
		FileID:          f.id,
		SourcePath:      f.in,
		DestinationPath: f.out,
	}, f.masterKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "encrypted %s -> %s (id %s) in %v\n", f.in, f.out, f.id, time.Since(start))
	return nil
}

func (a *app) decrypt(ctx context.Context, f cmdFlags, in, out string, stdout io.Writer) error {
	svc, err := a.service(dirOf(out))
	if err != nil {
		return err
	}
	start := time.Now()
	err = svc.DecryptFile(ctx, domain.DecryptionRequest{
		FileID:          f.id,
		SourcePath:      in,
		DestinationPath: out,
	}, f.masterKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "decrypted %s -> %s in %v\n", in, out, time.Since(start))
	return nil
}

func newMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate master key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
