package main

import (
	"fmt"
	"os"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/cmd/surakshad/run"
	"github.com/anjihan3601K/suraksha/services/recipients"
	"github.com/anjihan3601K/suraksha/services/storage"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func newRecipientsCmd() *cli.Command {
	return &cli.Command{
		Name:  "recipients",
		Usage: "manage registered recipients",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "import recipients from a YAML or JSON list, all or nothing",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{configFlag},
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 1 {
						return errors.New("import requires exactly one file")
					}
					rs, err := readRecipients(ctx.Args().First())
					if err != nil {
						return err
					}
					config, err := run.LoadConfig(run.FindConfigPath(ctx.String("config")), os.Getenv)
					if err != nil {
						return err
					}
					if err := config.Storage.Validate(); err != nil {
						return err
					}
					n, err := importRecipients(config.Storage, rs)
					if err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "imported %d recipients\n", n)
					return nil
				},
			},
		},
	}
}

// readRecipients decodes a YAML or JSON list of recipients.
func readRecipients(path string) ([]alert.Recipient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rs []alert.Recipient
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, errors.Wrapf(err, "failed to decode recipients from %s", path)
	}
	return rs, nil
}

func importRecipients(c storage.Config, rs []alert.Recipient) (int, error) {
	store := storage.NewService(c)
	if err := store.Open(); err != nil {
		return 0, errors.Wrap(err, "failed to open storage")
	}
	defer store.Close()

	srv := recipients.NewService()
	srv.StorageService = store
	if err := srv.Open(); err != nil {
		return 0, err
	}
	defer srv.Close()
	return srv.Import(rs)
}
