package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/example/champaran-pos/internal/archive"
	"github.com/example/champaran-pos/internal/config"
)

func ordersCommand() *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "inspect the local order archive",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list archived orders",
				Action: withArchive(listOrders(false)),
			},
			{
				Name:   "pending",
				Usage:  "list orders the remote intake never took",
				Action: withArchive(listOrders(true)),
			},
			{
				Name:      "show",
				Usage:     "print one order as JSON",
				ArgsUsage: "<order-number>",
				Action:    withArchive(showOrder),
			},
			{
				Name:      "proof",
				Usage:     "write a locally kept payment screenshot to a file",
				ArgsUsage: "<order-number> <file>",
				Action:    withArchive(writeProof),
			},
		},
	}
}

func withArchive(fn func(*cli.Context, *archive.RedisArchive) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		log.SetFormatter(&log.TextFormatter{})

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		rdb, err := openRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		return fn(c, archive.NewRedisArchive(rdb, cfg.ArchiveMaxEntries))
	}
}

func listOrders(pendingOnly bool) func(*cli.Context, *archive.RedisArchive) error {
	return func(c *cli.Context, a *archive.RedisArchive) error {
		orders, err := a.All(c.Context)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ORDER\tPLACED\tCUSTOMER\tTOTAL\tDELIVERY")
		for _, o := range orders {
			outcome := "unknown"
			status, err := a.Delivery(c.Context, o.OrderNumber)
			switch {
			case err == nil:
				outcome = string(status.Outcome)
				if status.Transport != "" {
					outcome += " (" + status.Transport + ")"
				}
			case !errors.Is(err, archive.ErrNotFound):
				return err
			}
			if pendingOnly && err == nil && status.Submitted() {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				o.OrderNumber, o.Timestamp.Format("2006-01-02 15:04"), o.CustomerName, o.GrandTotal, outcome)
		}
		return w.Flush()
	}
}

func showOrder(c *cli.Context, a *archive.RedisArchive) error {
	number := c.Args().First()
	if number == "" {
		return cli.Exit("order number required", 2)
	}

	order, err := a.FindByOrderNumber(c.Context, number)
	if err != nil {
		return err
	}
	out := map[string]any{"order": order}
	if status, err := a.Delivery(c.Context, number); err == nil {
		out["delivery_status"] = status
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeProof(c *cli.Context, a *archive.RedisArchive) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: orders proof <order-number> <file>", 2)
	}

	proof, err := a.Proof(c.Context, c.Args().Get(0))
	if errors.Is(err, archive.ErrNotFound) {
		return cli.Exit("no payment screenshot kept for this order", 1)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.Args().Get(1), proof.Data, 0o600); err != nil {
		return errors.Wrap(err, "write proof")
	}
	log.WithFields(log.Fields{"order_number": c.Args().Get(0), "bytes": len(proof.Data), "mime_type": proof.MimeType}).Info("proof written")
	return nil
}
