// Command tracker detects and tracks objects in a live camera feed or a
// video file, shows the annotated preview, and records, screenshots and
// logs on request. A control API is served alongside the preview.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/activitylog"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/config"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/control"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/cv"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/fsutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/pipeline"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/recording"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/report"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/store"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/timeutil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/tracks"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/version"
)

var (
	source        = flag.String("source", "0", "Camera index, video file or stream URL")
	modelPath     = flag.String("model", "models/yolov8n.onnx", "YOLOv8 ONNX model")
	configPath    = flag.String("config", config.DefaultConfigPath, "Tuning config (JSON); reloaded on change")
	outDir        = flag.String("out", ".", "Root for movies/, screenshots/ and logs/")
	dbPath        = flag.String("db", "", "SQLite history database (default <out>/tracker.db)")
	noDB          = flag.Bool("no-db", false, "Do not keep run history in SQLite")
	listen        = flag.String("listen", ":8090", "Control API listen address; empty disables it")
	headless      = flag.Bool("headless", false, "Run without the preview window")
	useCUDA       = flag.Bool("cuda", false, "Run inference on CUDA")
	streamQuality = flag.Int("stream-quality", control.DefaultStreamQuality, "JPEG quality of the /stream live view")
	writePlots    = flag.Bool("plots", true, "Write trajectory and FPS plots to logs/ on exit")
	debugLog      = flag.Bool("debug", false, "Enable the pipeline diagnostic log stream")
	traceLog      = flag.Bool("trace", false, "Enable per-cycle pipeline trace logging")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

// HighGUI wants the thread that created the window to drive it; the frame
// loop runs on the main goroutine.
func init() { runtime.LockOSThread() }

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("tracker"))
		return
	}
	log.Print(version.String("tracker"))
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(path string) *config.TuningConfig {
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		log.Printf("using built-in defaults: %v", err)
		return config.DefaultTuningConfig()
	}
	return cfg
}

func logWriters() (ops, diag, trace io.Writer) {
	ops = os.Stderr
	if *debugLog {
		diag = os.Stderr
	}
	if *traceLog {
		trace = os.Stderr
	}
	return ops, diag, trace
}

func run() error {
	pipeline.SetLogWriters(logWriters())
	tuning := loadConfig(*configPath)

	layout := fsutil.NewLayout(*outDir)
	if err := layout.Ensure(); err != nil {
		return fmt.Errorf("failed to prepare output directories: %w", err)
	}
	names := detect.ClassNames(tuning.GetClassNames())
	settings, err := detect.NewSettings(tuning.GetConfidenceThreshold(), tuning.AllowedClassIDs())
	if err != nil {
		return err
	}

	capture, err := cv.OpenCapture(*source, tuning.GetDefaultFPS())
	if err != nil {
		return err
	}
	geom := capture.Geometry()

	detector, err := cv.NewYOLO(cv.YOLOConfig{
		ModelPath:    *modelPath,
		InputSize:    tuning.GetDetectorInputSize(),
		NMSThreshold: tuning.GetNMSThreshold(),
		UseCUDA:      *useCUDA,
	})
	if err != nil {
		capture.Close()
		return err
	}
	defer detector.Close()

	registry := tracks.NewRegistry(tracks.TrackerConfigFromTuning(tuning), tracks.NewIoUAssociator(tracks.IoUAssociatorConfig{
		MinIoU:  tuning.GetIoUThreshold(),
		MaxAge:  tuning.GetMaxMisses(),
		MinHits: tuning.GetHitsToConfirm(),
	}))

	recorder := recording.NewController(recording.Config{
		Container:  tuning.GetVideoContainer(),
		DefaultFPS: tuning.GetDefaultFPS(),
	}, layout, cv.VideoSink{Codec: tuning.GetVideoCodec()}, geom, timeutil.RealClock{})

	activity, err := activitylog.Create(layout)
	if err != nil {
		capture.Close()
		return err
	}
	defer activity.Close()
	sinks := []pipeline.BatchSink{activity}

	var db *store.DB
	if !*noDB {
		path := *dbPath
		if path == "" {
			path = filepath.Join(layout.Root, "tracker.db")
		}
		db, err = store.Open(path)
		if err != nil {
			capture.Close()
			return err
		}
		defer db.Close()
		registry.SetRetireHook(db.RecordRetiredTrack)
		recorder.SetObserver(db)
		sinks = append(sinks, db)
	}

	collector := report.NewCollector(0, 0)
	var server *control.Server
	observers := []pipeline.CycleObserver{collector.Observe}

	var displays pipeline.Displays
	var window *cv.Window
	if !*headless {
		window = cv.NewWindow("Object Detection and Tracking", nil)
		defer window.Close()
		displays = append(displays, window)
	}
	var stream *control.StreamSink
	if *listen != "" {
		stream = control.NewStreamSink(*streamQuality)
		displays = append(displays, stream)
		observers = append(observers, func(res pipeline.CycleResult) { server.Observe(res) })
	}

	var pre pipeline.Preprocessor
	if tuning.GetPreprocess() {
		pre = cv.Preprocessor{}
	}

	orch, err := pipeline.New(pipeline.Config{
		Source:             capture,
		Detector:           detector,
		Preprocessor:       pre,
		Settings:           settings,
		Registry:           registry,
		Recorder:           recorder,
		Annotator:          cv.Annotator{ShowControls: !*headless},
		Display:            displays,
		Screenshots:        cv.ImageWriter{},
		BatchSinks:         sinks,
		Observers:          observers,
		Layout:             layout,
		ScreenshotFormat:   tuning.GetScreenshotFormat(),
		ClassNames:         names,
		CycleInterval:      tuning.GetCycleInterval(),
		ReadRetries:        tuning.GetReadRetries(),
		NotificationWindow: tuning.GetNotificationWindow(),
	})
	if err != nil {
		capture.Close()
		return err
	}
	if window != nil {
		window.SetKeyHandler(orch)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	var wg sync.WaitGroup

	if watcher, err := config.NewWatcher(*configPath, func(c *config.TuningConfig) {
		if err := settings.SetThreshold(c.GetConfidenceThreshold()); err != nil {
			log.Printf("ignoring reloaded threshold: %v", err)
		}
		settings.SetAllowed(c.AllowedClassIDs())
		registry.UpdateConfig(func(tc *tracks.TrackerConfig) { tc.ApplyTuning(c) })
	}); err != nil {
		log.Printf("config hot reload disabled: %v", err)
	} else {
		defer watcher.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Run(ctx)
		}()
	}

	if *listen != "" {
		server, err = control.NewServer(control.Options{
			Controller: orch,
			Store:      db,
			Collector:  collector,
			Layout:     layout,
			ClassNames: names,
			Stream:     stream.Handler(),
		})
		if err != nil {
			orch.Quit()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Serve(ctx, *listen); err != nil {
				log.Printf("control server: %v", err)
				orch.RequestQuit()
			}
		}()
	}

	started := time.Now()
	runErr := orch.Run(ctx)
	stop()
	wg.Wait()

	sum := collector.Summary()
	log.Printf("processed %d frames in %v: mean %.2f fps (sd %.2f), %d distinct tracks, %d log lines",
		sum.Cycles, time.Since(started).Round(time.Millisecond), sum.MeanFPS, sum.StdDevFPS, sum.DistinctTracks, sum.LoggedSightings)
	if *writePlots {
		paths, err := collector.WritePlots(layout.LogsDir(), names, geom.Width, geom.Height, time.Now())
		if err != nil {
			log.Printf("failed to write plots: %v", err)
		}
		for _, p := range paths {
			log.Printf("wrote %s", p)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
