package cli

import (
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ytdle/internal/config"
)

// configKeys are the settings exposed on the command line, mapped to their
// typed Manager accessors so values are validated on write.
var configKeys = []string{
	config.KeyDefaultOutputDir,
	config.KeyDefaultFormat,
	config.KeyDefaultQuality,
	config.KeyMaxConcurrent,
	config.KeyAPIPort,
	config.KeyComputeChecksum,
}

func newConfigCmd(ro *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write persisted defaults",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show all persisted defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ro)
			if err != nil {
				return err
			}
			defer store.Close()

			keys := append([]string(nil), configKeys...)
			sort.Strings(keys)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, key := range keys {
				val, err := store.GetSetting(key)
				if err != nil {
					return err
				}
				if val == "" {
					val = "(default)"
				}
				fmt.Fprintf(w, "%s\t%s\n", key, val)
			}
			return w.Flush()
		},
	}

	getCmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Show one persisted default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !knownKey(args[0]) {
				return fmt.Errorf("unknown key %q (known: %v)", args[0], configKeys)
			}
			store, err := openStore(ro)
			if err != nil {
				return err
			}
			defer store.Close()

			val, err := store.GetSetting(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Persist a default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ro)
			if err != nil {
				return err
			}
			defer store.Close()

			mgr := config.NewManager(store)
			if err := setConfigValue(mgr, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, setCmd)
	return cmd
}

func knownKey(key string) bool {
	for _, k := range configKeys {
		if k == key {
			return true
		}
	}
	return false
}

func setConfigValue(mgr *config.Manager, key, value string) error {
	switch key {
	case config.KeyDefaultOutputDir:
		return mgr.SetDefaultOutputDir(value)
	case config.KeyDefaultFormat:
		kind, err := config.ParseKind(value)
		if err != nil {
			return err
		}
		return mgr.SetDefaultFormat(kind)
	case config.KeyDefaultQuality:
		return mgr.SetDefaultQuality(value)
	case config.KeyMaxConcurrent:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive integer", key)
		}
		return mgr.SetMaxConcurrent(n)
	case config.KeyAPIPort:
		port, err := strconv.Atoi(value)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("%s must be a port number (0-65535)", key)
		}
		return mgr.SetAPIPort(port)
	case config.KeyComputeChecksum:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false", key)
		}
		return mgr.SetComputeChecksum(b)
	default:
		return fmt.Errorf("unknown key %q (known: %v)", key, configKeys)
	}
}
