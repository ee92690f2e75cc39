package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/menta2k/cvatkit/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "cvatkit",
	Short: "Work with CVAT annotation exports",
	Long: `cvatkit reads and writes CVAT annotation exports (annotations.xml).
- link: deep link into the annotation tool for an image.
- status/images: job status side channel (job_status.json) and the images it covers.
- convert: rewrite an export as XML or as a msgpack snapshot.
- mask: encode mask rasters to RLE and back.
- render: draw the annotations of an image for review.
- prelabel: pre-annotate images with a vision model.
- push/pull: move datasets to and from a local or MinIO dataset store.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CVATKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("annotations", "a", "annotations.xml", "annotation export (xml or msgpack snapshot)")
	rootCmd.PersistentFlags().String("job-status", "", "job status file (default: job_status.json next to the export)")
	rootCmd.PersistentFlags().String("config", config.GetConfigPath(), "config file (yaml or json)")
	rootCmd.PersistentFlags().String("host", "", "host used in deep links (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("annotations", rootCmd.PersistentFlags().Lookup("annotations"))
	_ = viper.BindPFlag("job-status", rootCmd.PersistentFlags().Lookup("job-status"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindEnv("store-access-key", "CVATKIT_STORE_ACCESS_KEY")
	_ = viper.BindEnv("store-secret-key", "CVATKIT_STORE_SECRET_KEY")
}

func registerCommands() {
	rootCmd.AddCommand(linkCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(imagesCmd())
	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(maskCmd())
	rootCmd.AddCommand(requestsCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(prelabelCmd())
	rootCmd.AddCommand(pushCmd())
	rootCmd.AddCommand(pullCmd())
	rootCmd.AddCommand(configCmd())
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if host := viper.GetString("host"); host != "" {
		cfg.Link.Host = host
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
