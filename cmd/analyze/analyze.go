// Package analyze implements the analyze command, which runs the detection
// pipeline once over image files given on the command line.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Reefey/Backend-sub000/internal/annotate"
	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/datastore"
	"github.com/Reefey/Backend-sub000/internal/objectstore"
	"github.com/Reefey/Backend-sub000/internal/pipeline"
	"github.com/Reefey/Backend-sub000/internal/reconciler"
	"github.com/Reefey/Backend-sub000/internal/suncalc"
	"github.com/Reefey/Backend-sub000/internal/vision"
)

// Command creates the analyze command.
func Command(settings *conf.Settings) *cobra.Command {
	var deviceID string

	cmd := &cobra.Command{
		Use:   "analyze [image files]",
		Short: "Analyze image files and print the detection results as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > conf.MaxBatchImages {
				return fmt.Errorf("too many images: %d exceeds the batch limit of %d", len(args), conf.MaxBatchImages)
			}
			return run(settings, deviceID, args)
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "cli", "Device identifier recorded with the sightings")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		cobra.CheckErr(err)
	}

	return cmd
}

func run(settings *conf.Settings, deviceID string, paths []string) error {
	images := make([]pipeline.Image, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		images = append(images, pipeline.Image{Filename: filepath.Base(path), Data: data})
	}

	ds := datastore.New(settings)
	if err := ds.Open(); err != nil {
		return err
	}
	defer func() { _ = ds.Close() }()

	store, err := objectstore.New(settings, nil)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	visionProvider, err := vision.NewProvider(settings)
	if err != nil {
		return err
	}
	visionSvc := vision.NewService(visionProvider, settings, nil)

	var engineOpts []reconciler.Option
	if settings.Location.Latitude != 0 || settings.Location.Longitude != 0 {
		sc := suncalc.NewSunCalc(settings.Location.Latitude, settings.Location.Longitude)
		engineOpts = append(engineOpts, reconciler.WithDayPeriod(sc.DayPeriod))
	}
	engine := reconciler.NewEngine(ds, &settings.Reconciler, engineOpts...)

	var pipelineOpts []pipeline.Option
	if settings.Annotate.Enabled {
		pipelineOpts = append(pipelineOpts, pipeline.WithRenderer(annotate.NewRenderer(&settings.Annotate, nil)))
	}
	orchestrator := pipeline.New(settings, visionSvc, store, engine, pipelineOpts...)

	ctx := context.Background()

	var result any
	if len(images) == 1 {
		result, err = orchestrator.AnalyzeImage(ctx, deviceID, images[0])
	} else {
		result, err = orchestrator.AnalyzeBatch(ctx, deviceID, images)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
