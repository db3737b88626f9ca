package control

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/httputil"
)

// echartsAssetsPrefix is where the rendered page loads echarts from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// maxChartPoints caps the samples drawn; older history is decimated.
const maxChartPoints = 2000

// handleChart renders frame rate and confirmed track count over the run.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if s.opts.Collector == nil {
		httputil.NotFound(w, "telemetry not configured")
		return
	}
	samples := s.opts.Collector.Samples()
	stride := 1
	if len(samples) > maxChartPoints {
		stride = (len(samples) + maxChartPoints - 1) / maxChartPoints
	}

	x := make([]string, 0, len(samples)/stride+1)
	fps := make([]opts.LineData, 0, cap(x))
	confirmed := make([]opts.LineData, 0, cap(x))
	for i := 0; i < len(samples); i += stride {
		smp := samples[i]
		x = append(x, fmt.Sprintf("%d", smp.Seq))
		fps = append(fps, opts.LineData{Value: fmt.Sprintf("%.2f", smp.FPS)})
		confirmed = append(confirmed, opts.LineData{Value: smp.ConfirmedTracks})
	}

	sum := s.opts.Collector.Summary()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracker telemetry", Theme: "dark", Width: "100%", Height: "640px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Frame rate and confirmed tracks",
			Subtitle: fmt.Sprintf("cycles=%d mean=%.2f fps distinct tracks=%d at %s", sum.Cycles, sum.MeanFPS, sum.DistinctTracks, time.Now().Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).
		AddSeries("fps", fps).
		AddSeries("confirmed tracks", confirmed)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
