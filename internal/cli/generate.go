package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/landplan/internal/control"
	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/generation"
)

var (
	genWidth  float64
	genDepth  float64
	genArea   float64
	genMinLot float64
	genLots   int
	genNotes  string
	genImage  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one subdivision plan and print it as JSON",
	Run:   runGenerate,
}

func init() {
	generateCmd.Flags().Float64Var(&genWidth, "width", 0, "parcel width in meters")
	generateCmd.Flags().Float64Var(&genDepth, "depth", 0, "parcel depth in meters")
	generateCmd.Flags().Float64Var(&genArea, "area", 0, "parcel area in m², used as a square when width and depth are unset")
	generateCmd.Flags().Float64Var(&genMinLot, "min-lot", 0, "minimum lot area in m²")
	generateCmd.Flags().IntVar(&genLots, "lots", 0, "target number of lots (0 lets the generator decide)")
	generateCmd.Flags().StringVar(&genNotes, "notes", "", "free-form instructions for the generator")
	generateCmd.Flags().BoolVar(&genImage, "image", false, "also generate a preview image")
	_ = generateCmd.MarkFlagRequired("min-lot")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	app, err := control.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize landplan", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := domain.PlanRequest{
		Width:      genWidth,
		Depth:      genDepth,
		MinLotArea: genMinLot,
		TargetLots: genLots,
		Notes:      genNotes,
	}
	if req.Width == 0 && req.Depth == 0 && genArea > 0 {
		side := math.Sqrt(genArea)
		req.Width, req.Depth = side, side
	}

	plan, err := app.Service().GeneratePlan(ctx, req)
	if err != nil {
		slog.Debug("Plan generation failed", "error", err)
		fmt.Fprintln(os.Stderr, generation.UserMessage(err))
		os.Exit(1)
	}

	out := map[string]any{"plan": plan}
	if genImage {
		prompt := fmt.Sprintf("Aerial site plan of a %.0f m² parcel divided into %d lots. %s",
			req.TotalArea(), len(plan.Lots), plan.Summary)
		img, err := app.Service().GenerateImage(ctx, domain.ImageRequest{Prompt: prompt})
		if err != nil {
			fmt.Fprintln(os.Stderr, generation.UserMessage(err))
		} else {
			out["image"] = img
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
