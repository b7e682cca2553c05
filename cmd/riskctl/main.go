// RoadRisk CLI - accident risk scoring from the command line.
//
// Usage:
//   riskctl predict --lat 13.7563 --lon 100.5018 --hour 18 --day 4 --month 12
//   riskctl hotspots --locations data/accident_locations.json --hour 18
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"roadrisk/internal/feature"
	"roadrisk/internal/geocode"
	"roadrisk/internal/hotspot"
	"roadrisk/internal/model"
	"roadrisk/internal/risk"
	"roadrisk/internal/store"
	"roadrisk/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
)

// Exit codes for CI integration: a trip scoring at or above very_high
// fails the pipeline step.
const (
	ExitSuccess  = 0
	ExitHighRisk = 1
	ExitInputErr = 10
	ExitModelErr = 11
)

func main() {
	app := &cli.App{
		Name:    "riskctl",
		Usage:   "Accident severity risk scoring and hotspot ranking",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "model",
				Value:   "models/severity_model.json",
				Usage:   "Path to the model dump",
				EnvVars: []string{"MODEL_PATH"},
			},
			&cli.StringFlag{
				Name:    "encoder",
				Value:   "models/label_encoder.json",
				Usage:   "Path to the label encoder",
				EnvVars: []string{"ENCODER_PATH"},
			},
		},
		Commands: []*cli.Command{
			predictCommand(),
			hotspotsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitInputErr)
	}
}

func loadModel(c *cli.Context) (*model.Classifier, *feature.Builder, error) {
	classifier, err := model.Load(c.String("model"), c.String("encoder"))
	if err != nil {
		return nil, nil, err
	}
	builder := feature.NewBuilder()
	if builder.Len() != classifier.NumFeatures() {
		return nil, nil, fmt.Errorf("feature count mismatch: builder %d, model %d", builder.Len(), classifier.NumFeatures())
	}
	return classifier, builder, nil
}

func predictCommand() *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Score a single location and time",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat", Required: true, Usage: "Latitude"},
			&cli.Float64Flag{Name: "lon", Required: true, Usage: "Longitude"},
			&cli.IntFlag{Name: "hour", Required: true, Usage: "Hour of day (0-23)"},
			&cli.IntFlag{Name: "day", Required: true, Usage: "Day of week (0=Monday .. 6=Sunday)"},
			&cli.IntFlag{Name: "month", Required: true, Usage: "Month (1-12)"},
			&cli.Float64Flag{Name: "rainfall", Value: 0, Usage: "Rainfall in mm"},
			&cli.StringFlag{Name: "vehicle", Value: "car", Usage: "Vehicle type"},
			&cli.IntFlag{Name: "nearby", Value: 0, Usage: "Accidents within 10km"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format (table, json)"},
			&cli.BoolFlag{Name: "ci", Usage: "Exit non-zero when the risk level is very_high"},
		},
		Action: runPredict,
	}
}

func runPredict(c *cli.Context) error {
	classifier, builder, err := loadModel(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitModelErr)
	}

	ctx := feature.Defaults()
	ctx.Latitude = c.Float64("lat")
	ctx.Longitude = c.Float64("lon")
	ctx.Hour = c.Int("hour")
	ctx.DayOfWeek = c.Int("day")
	ctx.Month = c.Int("month")
	ctx.Rainfall = c.Float64("rainfall")
	ctx.VehicleType = c.String("vehicle")
	ctx.NearbyEventsCount = c.Int("nearby")

	if ctx.Hour < 0 || ctx.Hour > 23 || ctx.DayOfWeek < 0 || ctx.DayOfWeek > 6 || ctx.Month < 1 || ctx.Month > 12 {
		fmt.Fprintln(os.Stderr, "Error: hour must be 0-23, day 0-6, month 1-12")
		os.Exit(ExitInputErr)
	}

	pred, err := classifier.PredictOne(builder.Vector(ctx))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitModelErr)
	}

	calibrator := risk.NewCalibrator(classifier.Classes())
	a := calibrator.Assess(pred, risk.InputFromContext(ctx, ctx.NearbyEventsCount))

	if c.String("format") == "json" {
		out, _ := json.MarshalIndent(a, "", "  ")
		fmt.Println(string(out))
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Severity:\t%s\n", a.Severity)
		fmt.Fprintf(w, "Risk score:\t%d (%s)\n", a.Score, a.Level)
		fmt.Fprintf(w, "Confidence:\t%.2f\n", a.Confidence)
		for i, f := range a.Factors {
			if i == 0 {
				fmt.Fprintf(w, "Factors:\t%s\n", f)
			} else {
				fmt.Fprintf(w, "\t%s\n", f)
			}
		}
		for i, rec := range a.Recommendations {
			if i == 0 {
				fmt.Fprintf(w, "Advice:\t%s\n", rec)
			} else {
				fmt.Fprintf(w, "\t%s\n", rec)
			}
		}
		w.Flush()
	}

	if c.Bool("ci") && a.Level == risk.LevelVeryHigh {
		os.Exit(ExitHighRisk)
	}
	return nil
}

func hotspotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "hotspots",
		Usage: "Rank national risk zones under given conditions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "locations",
				Value:   "data/accident_locations.json",
				Usage:   "Path to the location aggregates JSON",
				EnvVars: []string{"LOCATIONS_FILE"},
			},
			&cli.IntFlag{Name: "hour", Value: 18, Usage: "Hour of day"},
			&cli.IntFlag{Name: "day", Value: 4, Usage: "Day of week (0=Monday)"},
			&cli.IntFlag{Name: "month", Value: 1, Usage: "Month"},
			&cli.Float64Flag{Name: "rainfall", Value: 0, Usage: "Rainfall in mm"},
			&cli.Float64Flag{Name: "density", Value: 0.5, Usage: "Traffic density (0-1)"},
			&cli.IntFlag{Name: "top", Value: 20, Usage: "How many zones to print"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format (table, json)"},
		},
		Action: runHotspots,
	}
}

func runHotspots(c *cli.Context) error {
	classifier, builder, err := loadModel(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitModelErr)
	}

	locs, err := store.LoadLocationsFile(c.String("locations"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitInputErr)
	}

	log := platform.InitLogger("riskctl")
	hlocs := make([]hotspot.Location, len(locs))
	for i, l := range locs {
		hlocs[i] = hotspot.Location{
			Latitude:        l.Latitude,
			Longitude:       l.Longitude,
			AccidentCount:   l.AccidentCount,
			PrimarySeverity: l.PrimarySeverity,
			Province:        l.Province,
			PeakHours:       l.PeakHours,
		}
	}

	// No live geocoding from the CLI; every zone gets a synthetic name.
	ranker := hotspot.NewRanker(builder, classifier, syntheticGeocoder{}, hlocs, log)
	ranking, err := ranker.Rank(context.Background(), hotspot.Conditions{
		Hour:           c.Int("hour"),
		DayOfWeek:      c.Int("day"),
		Month:          c.Int("month"),
		Rainfall:       c.Float64("rainfall"),
		TrafficDensity: c.Float64("density"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitModelErr)
	}

	if c.String("format") == "json" {
		out, _ := json.MarshalIndent(ranking, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Checked %d locations, found %d risk zones\n\n", ranking.TotalChecked, ranking.Found)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tSEVERITY\tACCIDENTS\tPROVINCE\tNAME")
	top := c.Int("top")
	for i, h := range ranking.Hotspots {
		if i >= top {
			break
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", h.RiskScore, h.Severity, h.AccidentCount, h.Province, h.Name)
	}
	w.Flush()
	return nil
}

type syntheticGeocoder struct{}

func (syntheticGeocoder) DisplayName(_ context.Context, _, _ float64, accidentCount int) string {
	return geocode.SyntheticName(accidentCount)
}
