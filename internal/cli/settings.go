package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"crash/internal/config"
)

// settingCmd builds a command that prints a setting with no argument and
// changes it with one.
func settingCmd(use, short string, get func(*config.AppConfig) string, set func(*config.AppConfig, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appInstance.Config
			if len(args) == 0 {
				fmt.Println(get(cfg))
				return nil
			}

			if err := set(cfg, args[0]); err != nil {
				return err
			}
			if err := appInstance.Save(); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ ") + fmt.Sprintf("%s = %s", cmd.Name(), get(cfg)))
			return nil
		},
	}
}

var urlCmd = settingCmd("url [source]", "Show or set the core config source (http(s) URL or local path)",
	func(c *config.AppConfig) string { return c.URL },
	func(c *config.AppConfig, v string) error {
		c.URL = v
		return nil
	},
)

var proxyCmd = settingCmd("proxy [mirror]", "Show or set the GitHub download mirror",
	func(c *config.AppConfig) string { return c.Proxy.String() },
	func(c *config.AppConfig, v string) error {
		m, err := config.ParseMirror(v)
		if err != nil {
			return err
		}
		c.Proxy = m
		return nil
	},
)

var uiCmd = settingCmd("ui [dashboard]", "Show or set the web dashboard",
	func(c *config.AppConfig) string { return c.Web.UI.String() },
	func(c *config.AppConfig, v string) error {
		u, err := config.ParseUI(v)
		if err != nil {
			return err
		}
		c.Web.UI = u
		return nil
	},
)

var hostCmd = settingCmd("host [addr]", "Show or set the controller bind address (host:port)",
	func(c *config.AppConfig) string { return c.Web.Host },
	func(c *config.AppConfig, v string) error {
		if err := config.ValidateHost(v); err != nil {
			return err
		}
		c.Web.Host = v
		return nil
	},
)

var coreCmd = settingCmd("core [variant]", "Show or set the proxy core",
	func(c *config.AppConfig) string { return c.Core.String() },
	func(c *config.AppConfig, v string) error {
		core, err := config.ParseCore(v)
		if err != nil {
			return err
		}
		c.Core = core
		return nil
	},
)

var maxRuntimeCmd = settingCmd("max-runtime [hours]", "Show or set the forced restart interval in hours (0 disables)",
	func(c *config.AppConfig) string { return strconv.FormatUint(c.MaxRuntimeHours, 10) },
	func(c *config.AppConfig, v string) error {
		hours, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("max-runtime: %w", err)
		}
		c.MaxRuntimeHours = hours
		return nil
	},
)

var targetCmd = settingCmd("target [triple]", "Show or set the platform triple used to pick release assets",
	func(c *config.AppConfig) string { return c.Target.String() },
	func(c *config.AppConfig, v string) error {
		t, err := config.ParseTarget(v)
		if err != nil {
			return err
		}
		c.Target = t
		return nil
	},
)

var secretCmd = &cobra.Command{
	Use:   "secret [value]",
	Short: "Show or set the controller secret",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		generate, _ := cmd.Flags().GetBool("generate")
		cfg := appInstance.Config

		switch {
		case generate:
			cfg.Web.Secret = uuid.NewString()
		case len(args) == 1:
			cfg.Web.Secret = args[0]
		default:
			fmt.Println(cfg.Web.Secret)
			return nil
		}

		if err := appInstance.Save(); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ ") + "secret = " + cfg.Web.Secret)
		return nil
	},
}

func init() {
	proxyCmd.ValidArgsFunction = completeValues(config.Mirrors)
	uiCmd.ValidArgsFunction = completeValues(config.UIs)
	coreCmd.ValidArgsFunction = completeValues(config.Cores)
	targetCmd.ValidArgsFunction = completeValues(config.Targets)

	secretCmd.Flags().BoolP("generate", "g", false, "generate a random secret")

	rootCmd.AddCommand(urlCmd, proxyCmd, uiCmd, hostCmd, secretCmd, coreCmd, maxRuntimeCmd, targetCmd)
}
