package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/devices"
)

func runDevices(out io.Writer, store *devices.Store, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "list":
		if len(rest) != 0 {
			return fmt.Errorf("usage: devices list")
		}
		return listDevices(out, store)
	case "add":
		if len(rest) != 2 {
			return fmt.Errorf("usage: devices add NAME ADDRESS")
		}
		d, err := store.Add(rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "added %s (%s) as %s\n", d.Name, d.IP, d.ID)
	case "rename":
		if len(rest) != 2 {
			return fmt.Errorf("usage: devices rename ID NAME")
		}
		d, err := store.Rename(rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "renamed %s to %s\n", d.ID, d.Name)
	case "delete":
		if len(rest) != 1 {
			return fmt.Errorf("usage: devices delete ID")
		}
		if err := store.Delete(rest[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", rest[0])
	default:
		return fmt.Errorf("unknown devices command %q", cmd)
	}
	return nil
}

func listDevices(out io.Writer, store *devices.Store) error {
	list := store.List()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tADDRESS\n")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Name, d.IP)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "(%d / %d)\n", len(list), devices.Limit)
	return nil
}
