package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/aadhaar"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify an Aadhaar card against a registered profile",
	Run: func(cmd *cobra.Command, _ []string) {
		runVerify(cmd)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringP("email", "m", "", "email of the registered user")
	verifyCmd.Flags().String("front", "", "image of the front side of the card")
	verifyCmd.Flags().String("back", "", "image of the back side of the card")
	verifyCmd.MarkFlagRequired("email")
	verifyCmd.MarkFlagRequired("front")
	verifyCmd.MarkFlagRequired("back")
}

func runVerify(cmd *cobra.Command) {
	ctx := context.Background()

	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	email, _ := cmd.Flags().GetString("email")
	frontPath, _ := cmd.Flags().GetString("front")
	backPath, _ := cmd.Flags().GetString("back")

	front, err := readImage(frontPath)
	if err != nil {
		logger.Fatal("reading front image", zap.Error(err))
	}
	back, err := readImage(backPath)
	if err != nil {
		logger.Fatal("reading back image", zap.Error(err))
	}

	d, err := buildDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("building dependencies", zap.Error(err))
	}
	defer d.close(logger)

	if d.verifier == nil {
		logger.Fatal("verification requires a gemini api key", zap.String("hint", "set GEMINI_API_KEY or gemini.api-key-file"))
	}

	res, err := d.verifier.Verify(ctx, email, front, back)
	if err != nil {
		logger.Fatal("verification failed", zap.Error(err))
	}

	if err := printJSON(res); err != nil {
		logger.Fatal("printing result", zap.Error(err))
	}
}

func readImage(path string) (aadhaar.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return aadhaar.Image{}, err
	}

	img, err := aadhaar.NewImage(data)
	if err != nil {
		return aadhaar.Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
