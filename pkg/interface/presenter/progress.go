package presenter

import (
	"io"

	"github.com/dd32/crawl-a-million-miles/pkg/application"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProgressBar shows processed domains against the expected total. The total
// is an estimate, so the bar only completes when the crawl reports done or
// on Wait. A total of 0 leaves the bar open-ended.
type ProgressBar struct {
	progress *mpb.Progress
	bar      *mpb.Bar
}

// NewProgressBar creates a progress bar writing to out
func NewProgressBar(out io.Writer, total int64) *ProgressBar {
	progress := mpb.New(mpb.WithOutput(out), mpb.WithWidth(40))

	// mpb ignores SetTotal on bars created with a positive total
	bar := progress.AddBar(0,
		mpb.BarOptional(mpb.BarRemoveOnComplete(), false),
		mpb.PrependDecorators(
			decor.Name("crawl", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("[%d / %d]", decor.WCSyncWidth),
			decor.Percentage(decor.WCSyncSpace),
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO, decor.WCSyncSpace), "done",
			),
		),
	)

	if total > 0 {
		bar.SetTotal(total, false)
	}
	return &ProgressBar{progress: progress, bar: bar}
}

// OnStatsUpdate implements application.StatsObserver
func (p *ProgressBar) OnStatsUpdate(snapshot entity.StatsSnapshot, status application.Status) {
	p.bar.SetCurrent(snapshot.Processed)
	if status.Done {
		p.bar.SetTotal(-1, true)
	}
}

// Current returns the value shown by the bar
func (p *ProgressBar) Current() int64 {
	return p.bar.Current()
}

// Wait completes the bar and waits for the last render
func (p *ProgressBar) Wait() {
	p.bar.SetTotal(-1, true)
	p.progress.Wait()
}
