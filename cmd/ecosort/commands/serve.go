package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ecosort/internal/app"
	"ecosort/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("host", "0.0.0.0", "Address to bind")
	flags.Int("port", 3000, "Port to listen on")
	flags.String("upload-dir", "uploads", "Directory captured images are written to")
	flags.Duration("capture-timeout", 30*time.Second, "How long a trigger waits for an image")
	flags.Duration("capture-window", 5*time.Second, "How long newly connected clients still get start_capture")
	flags.Int("max-image-dimension", 1024, "Longest side sent to the classifier, 0 sends the stored file")
	flags.String("mqtt-broker", "", "MQTT broker for device triggers, empty disables the bridge")
	flags.String("s3-bucket", "", "S3 bucket for archived captures, empty disables archiving")

	for _, name := range []string{"host", "port", "upload-dir", "capture-timeout", "capture-window", "max-image-dimension", "mqtt-broker", "s3-bucket"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	application, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	return application.Run(cmd.Context())
}
