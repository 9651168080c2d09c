// Command mmdeploy-infer runs one batched inference over a list of images
// and prints the results in input order.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy/refengine"
)

type options struct {
	engine  string
	task    string
	model   string
	device  string
	format  string
	width   int
	height  int
	topK    int
	asJSON  bool
	verbose bool
	images  []string
}

func main() {
	var opts options
	flag.StringVar(&opts.engine, "engine", "ref", "Inference engine: ref or native")
	flag.StringVar(&opts.task, "task", "classify", "Task: classify, detect, segment or text")
	flag.StringVar(&opts.model, "model", "", "Path to the model artifact or directory")
	flag.StringVar(&opts.device, "device", "cpu:0", "Device as name[:id]")
	flag.StringVar(&opts.format, "format", "bgr", "Pixel format fed to the model: bgr, rgb, bgra or gray")
	flag.IntVar(&opts.width, "width", 0, "Resize images to this width (with -height)")
	flag.IntVar(&opts.height, "height", 0, "Resize images to this height (with -width)")
	flag.IntVar(&opts.topK, "topk", 0, "Print at most this many labels per image (0 prints all)")
	flag.BoolVar(&opts.asJSON, "json", false, "Print results as JSON")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.Parse()
	opts.images = flag.Args()

	if opts.model == "" || len(opts.images) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mmdeploy-infer -model <path> [-engine ref|native] [-task classify|detect|segment|text] IMAGE...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := newLogger(opts.verbose)
	defer log.Sync() //nolint:errcheck

	if err := run(context.Background(), log, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger logs human-readable lines to a terminal and JSON otherwise.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func newEngine(name string, log *zap.Logger) (mmdeploy.Engine, error) {
	switch name {
	case "ref":
		return refengine.New(refengine.WithLogger(log)), nil
	case "native":
		return mmdeploy.NewNativeEngine()
	}
	return nil, fmt.Errorf("unknown engine %q", name)
}

func parseFormat(s string) (mmdeploy.PixelFormat, error) {
	switch strings.ToLower(s) {
	case "bgr":
		return mmdeploy.PixelBGR, nil
	case "rgb":
		return mmdeploy.PixelRGB, nil
	case "bgra":
		return mmdeploy.PixelBGRA, nil
	case "gray", "grayscale":
		return mmdeploy.PixelGrayscale, nil
	}
	return 0, fmt.Errorf("unknown pixel format %q", s)
}

// imageResult is one line of output.
type imageResult struct {
	Image        string                   `json:"image"`
	Labels       []mmdeploy.Label         `json:"labels,omitempty"`
	Detections   []mmdeploy.Detection     `json:"detections,omitempty"`
	TextRegions  []mmdeploy.TextDetection `json:"text_regions,omitempty"`
	Segmentation *mmdeploy.Segmentation   `json:"segmentation,omitempty"`
}

func run(ctx context.Context, log *zap.Logger, opts options, out io.Writer) (err error) {
	dev, err := mmdeploy.ParseDevice(opts.device)
	if err != nil {
		return err
	}
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}
	eng, err := newEngine(opts.engine, log)
	if err != nil {
		return err
	}

	mats := make([]mmdeploy.Mat, len(opts.images))
	for i, path := range opts.images {
		if mats[i], err = mmdeploy.LoadMat(path, opts.width, opts.height, format); err != nil {
			return err
		}
	}

	sess := mmdeploy.NewSession(eng, mmdeploy.WithLogger(log))
	defer func() {
		err = multierr.Append(err, sess.Close())
	}()

	results := make([]imageResult, len(opts.images))
	for i, path := range opts.images {
		results[i].Image = path
	}

	var names []string
	switch opts.task {
	case "classify":
		cls, err := sess.NewClassifier(opts.model, dev)
		if err != nil {
			return err
		}
		defer cls.Destroy() //nolint:errcheck
		if ref, ok := eng.(*refengine.Engine); ok {
			names = ref.LabelNames(mmdeploy.Raw(cls.ID()))
		}
		err = cls.ApplyFunc(ctx, mats, func(labels [][]mmdeploy.Label) error {
			for i, l := range labels {
				if opts.topK > 0 && len(l) > opts.topK {
					l = l[:opts.topK]
				}
				results[i].Labels = l
			}
			return nil
		})
		if err != nil {
			return err
		}
	case "detect":
		det, err := sess.NewDetector(opts.model, dev)
		if err != nil {
			return err
		}
		defer det.Destroy() //nolint:errcheck
		err = det.ApplyFunc(ctx, mats, func(dets [][]mmdeploy.Detection) error {
			for i, d := range dets {
				results[i].Detections = d
			}
			return nil
		})
		if err != nil {
			return err
		}
	case "segment":
		seg, err := sess.NewSegmentor(opts.model, dev)
		if err != nil {
			return err
		}
		defer seg.Destroy() //nolint:errcheck
		err = seg.ApplyFunc(ctx, mats, func(maps []mmdeploy.Segmentation) error {
			for i := range maps {
				results[i].Segmentation = &maps[i]
			}
			return nil
		})
		if err != nil {
			return err
		}
	case "text":
		td, err := sess.NewTextDetector(opts.model, dev)
		if err != nil {
			return err
		}
		defer td.Destroy() //nolint:errcheck
		err = td.ApplyFunc(ctx, mats, func(regions [][]mmdeploy.TextDetection) error {
			for i, r := range regions {
				results[i].TextRegions = r
			}
			return nil
		})
		if err != nil {
			return err
		}
	default:
		return errors.New("unknown task " + opts.task)
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		printResult(out, r, names)
	}
	return nil
}

func printResult(w io.Writer, r imageResult, names []string) {
	fmt.Fprintf(w, "%s\n", r.Image)
	for _, l := range r.Labels {
		name := ""
		if l.LabelID >= 0 && int(l.LabelID) < len(names) {
			name = " " + names[l.LabelID]
		}
		fmt.Fprintf(w, "  label %d%s: %.4f\n", l.LabelID, name, l.Score)
	}
	for _, d := range r.Detections {
		fmt.Fprintf(w, "  label %d: %.4f [%.1f %.1f %.1f %.1f]\n",
			d.LabelID, d.Score, d.BBox.Left, d.BBox.Top, d.BBox.Right, d.BBox.Bottom)
	}
	for _, t := range r.TextRegions {
		fmt.Fprintf(w, "  text %.4f %v\n", t.Score, t.BBox)
	}
	if s := r.Segmentation; s != nil {
		counts := make(map[int32]int)
		for _, c := range s.Mask {
			counts[c]++
		}
		fmt.Fprintf(w, "  segmentation %dx%d, %d classes present\n", s.Width, s.Height, len(counts))
	}
}
