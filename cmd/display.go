package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/killerciao/CoomerDLEnhanced/internal/session"
	"github.com/killerciao/CoomerDLEnhanced/utils"
)

type fileOutput struct {
	path       string
	downloaded int64
	total      int64
	speed      float64
	eta        time.Duration
	index      int
	updated    time.Time
}

// Display renders per-file progress bars and buffered log lines on a ticker,
// redrawing in place with ANSI cursor movement. It is the session's callback
// sink for interactive runs.
type Display struct {
	mutex     sync.RWMutex
	files     map[string]*fileOutput
	fileCount int
	completed int
	total     int
	logLines  []string
	maxLogs   int

	numLines    int
	displayTick time.Duration
	doneCh      chan struct{}
	displayWg   sync.WaitGroup
}

func NewDisplay() *Display {
	return &Display{
		files:       make(map[string]*fileOutput),
		maxLogs:     8,
		displayTick: 300 * time.Millisecond,
		doneCh:      make(chan struct{}),
	}
}

func (d *Display) OnLog(message string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, line := range strings.Split(message, "\n") {
		if line == "" {
			continue
		}
		d.logLines = append(d.logLines, line)
	}
	if len(d.logLines) > d.maxLogs {
		d.logLines = d.logLines[len(d.logLines)-d.maxLogs:]
	}
}

func (d *Display) OnProgress(ev session.ProgressEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	info, exists := d.files[ev.FileID]
	if !exists {
		d.fileCount++
		info = &fileOutput{index: d.fileCount}
		d.files[ev.FileID] = info
	}
	info.path = ev.Path
	info.downloaded = ev.Downloaded
	info.total = ev.Total
	info.speed = ev.Speed
	info.eta = ev.ETA
	info.updated = time.Now()
}

func (d *Display) OnGlobalProgress(completed, total int) {
	d.mutex.Lock()
	d.completed = completed
	d.total = total
	// A resolved file no longer needs a bar; global counters carry it now.
	for id, info := range d.files {
		if info.total > 0 && info.downloaded >= info.total {
			delete(d.files, id)
		}
	}
	d.mutex.Unlock()
}

func (d *Display) OnComplete() {}

func (d *Display) Start() {
	d.displayWg.Add(1)
	go func() {
		defer d.displayWg.Done()
		ticker := time.NewTicker(d.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.updateDisplay()
			case <-d.doneCh:
				d.updateDisplay()
				return
			}
		}
	}()
}

func (d *Display) Stop() {
	close(d.doneCh)
	d.displayWg.Wait()
	d.clearLines()
}

func (d *Display) clearLines() {
	if d.numLines <= 0 {
		return
	}
	fmt.Printf("\033[%dA\033[J", d.numLines)
	d.numLines = 0
}

func (d *Display) sortFiles() []*fileOutput {
	var active []*fileOutput
	for _, info := range d.files {
		active = append(active, info)
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].index < active[j].index
	})
	return active
}

func (d *Display) updateDisplay() {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	_, termHeight, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || termHeight <= 0 {
		termHeight = 24
	}
	maxBars := max(termHeight-d.maxLogs-3, 1)

	var lines []string
	lines = append(lines, utils.FInfo(fmt.Sprintf("%s Files: %d/%d", utils.StyleSymbols["arrow"], d.completed, d.total)))
	active := d.sortFiles()
	for i, info := range active {
		if i >= maxBars {
			lines = append(lines, utils.FDebug(fmt.Sprintf("  ... and %d more", len(active)-i)))
			break
		}
		bar := utils.PrintProgressBar(info.downloaded, info.total, 30)
		etaSecs := int64(info.eta.Seconds())
		if info.eta < 0 {
			etaSecs = -1
		}
		detail := fmt.Sprintf("%s %s %s %s ETA %s",
			filepath.Base(info.path),
			utils.StyleSymbols["bullet"],
			utils.FormatSpeed(info.speed),
			utils.StyleSymbols["bullet"],
			utils.FormatETA(etaSecs))
		lines = append(lines, "  "+bar+utils.FDebug(detail))
	}
	for _, log := range d.logLines {
		lines = append(lines, utils.FDebug("  "+log))
	}
	d.render(lines)
}

func (d *Display) render(lines []string) {
	if d.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", d.numLines)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	d.numLines = len(lines)
}

// ShowSummary prints the terminal state once the live display is torn down.
func (d *Display) ShowSummary(sum session.Summary, failed []string) {
	fmt.Println()
	if sum.Cancelled {
		utils.PrintWarning(fmt.Sprintf("%s Cancelled after %s: %d/%d files downloaded", utils.StyleSymbols["warning"], sum.Elapsed, sum.Completed, sum.Total))
	} else if sum.Failed > 0 {
		utils.PrintWarning(fmt.Sprintf("%s Finished with errors in %s: %d downloaded, %d skipped, %d failed", utils.StyleSymbols["warning"], sum.Elapsed, sum.Completed, sum.Skipped, sum.Failed))
	} else {
		utils.PrintSuccess(fmt.Sprintf("%s Finished in %s: %d downloaded, %d skipped", utils.StyleSymbols["pass"], sum.Elapsed, sum.Completed, sum.Skipped))
	}
	for _, f := range failed {
		utils.PrintError(fmt.Sprintf("  %s %s", utils.StyleSymbols["fail"], f))
	}
}
