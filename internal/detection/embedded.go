package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"sort"
	"sync"
)

const (
	// Cell edge length in pixels for the saliency grid.
	cellSize = 16
	// Minimum luminance spread within a cell (16-bit channel scale) for the
	// cell to count as salient.
	cellContrast = 6000
	// Regions smaller than this many pixels are noise, not people.
	minRegionArea = 400
)

// EmbeddedConfig holds configuration for the in-process detector.
type EmbeddedConfig struct {
	// Workers bounds the number of frames analyzed concurrently. Additional
	// requests queue rather than stampede the CPU.
	Workers int
}

// Embedded is the in-process person counter. The detector handle is built
// lazily on the first Detect call and cached for the process lifetime;
// analysis runs on a bounded worker pool so concurrent room requests and
// viewer traffic are never blocked behind a single frame.
type Embedded struct {
	workers int

	once   sync.Once
	handle *detectorHandle
	jobs   chan embeddedJob
}

type embeddedJob struct {
	frame []byte
	res   chan embeddedResult
}

type embeddedResult struct {
	count int
	err   error
}

// detectorHandle carries the fixed detection parameters. Counting is limited
// to the person class; every other region classification is ignored.
type detectorHandle struct {
	confThreshold float32
	iouThreshold  float32
}

// NewEmbedded creates the embedded detection backend.
func NewEmbedded(cfg EmbeddedConfig) *Embedded {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	return &Embedded{workers: workers}
}

func (d *Embedded) init() {
	d.handle = &detectorHandle{
		confThreshold: ConfThreshold,
		iouThreshold:  IoUThreshold,
	}
	d.jobs = make(chan embeddedJob)
	for i := 0; i < d.workers; i++ {
		go d.worker()
	}
	log.Printf("[Detector] Embedded detector initialized (workers: %d)", d.workers)
}

func (d *Embedded) worker() {
	for job := range d.jobs {
		count, err := d.analyze(job.frame)
		job.res <- embeddedResult{count: count, err: err}
	}
}

// Detect counts persons in a single frame.
func (d *Embedded) Detect(ctx context.Context, frame []byte, deviceID string) (int, error) {
	d.once.Do(d.init)

	res := make(chan embeddedResult, 1)
	select {
	case d.jobs <- embeddedJob{frame: frame, res: res}:
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}

	select {
	case r := <-res:
		return r.count, r.err
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}

func (d *Embedded) analyze(frame []byte) (int, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	regions := salientRegions(img)

	regions = filterByScore(regions, d.handle.confThreshold)
	regions = suppressOverlaps(regions, d.handle.iouThreshold)

	count := 0
	for _, r := range regions {
		if classifyRegion(r) == "person" {
			count++
		}
	}
	return count, nil
}

// region is a candidate detection in pixel coordinates.
type region struct {
	x, y, w, h int
	score      float32
}

func (r region) area() int { return r.w * r.h }

// salientRegions builds a cell grid over the frame, marks cells whose
// luminance spread exceeds the contrast threshold, and groups connected
// salient cells into candidate boxes. Score is the salient-cell density of
// the box.
func salientRegions(img image.Image) []region {
	bounds := img.Bounds()
	cols := (bounds.Dx() + cellSize - 1) / cellSize
	rows := (bounds.Dy() + cellSize - 1) / cellSize
	if cols == 0 || rows == 0 {
		return nil
	}

	salient := make([]bool, cols*rows)
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			if cellSalient(img, bounds.Min.X+cx*cellSize, bounds.Min.Y+cy*cellSize, bounds) {
				salient[cy*cols+cx] = true
			}
		}
	}

	var regions []region
	visited := make([]bool, cols*rows)
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			idx := cy*cols + cx
			if !salient[idx] || visited[idx] {
				continue
			}

			// Flood fill the connected group of salient cells.
			minCX, minCY, maxCX, maxCY := cx, cy, cx, cy
			cells := 0
			stack := []int{idx}
			visited[idx] = true
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				cells++

				x, y := cur%cols, cur/cols
				if x < minCX {
					minCX = x
				}
				if x > maxCX {
					maxCX = x
				}
				if y < minCY {
					minCY = y
				}
				if y > maxCY {
					maxCY = y
				}

				for _, n := range [4]int{cur - 1, cur + 1, cur - cols, cur + cols} {
					if n < 0 || n >= cols*rows {
						continue
					}
					// Reject horizontal wrap-around
					if (n == cur-1 || n == cur+1) && n/cols != y {
						continue
					}
					if salient[n] && !visited[n] {
						visited[n] = true
						stack = append(stack, n)
					}
				}
			}

			boxCells := (maxCX - minCX + 1) * (maxCY - minCY + 1)
			regions = append(regions, region{
				x:     bounds.Min.X + minCX*cellSize,
				y:     bounds.Min.Y + minCY*cellSize,
				w:     (maxCX - minCX + 1) * cellSize,
				h:     (maxCY - minCY + 1) * cellSize,
				score: float32(cells) / float32(boxCells),
			})
		}
	}
	return regions
}

// cellSalient samples every 2nd pixel of a cell and reports whether the
// luminance spread exceeds the contrast threshold.
func cellSalient(img image.Image, x0, y0 int, bounds image.Rectangle) bool {
	minLum := uint32(1<<32 - 1)
	maxLum := uint32(0)

	for y := y0; y < y0+cellSize && y < bounds.Max.Y; y += 2 {
		for x := x0; x < x0+cellSize && x < bounds.Max.X; x += 2 {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := (r + g + b) / 3
			if lum < minLum {
				minLum = lum
			}
			if lum > maxLum {
				maxLum = lum
			}
		}
	}
	return maxLum > minLum && maxLum-minLum > cellContrast
}

func filterByScore(regions []region, threshold float32) []region {
	kept := regions[:0]
	for _, r := range regions {
		if r.score >= threshold && r.area() >= minRegionArea {
			kept = append(kept, r)
		}
	}
	return kept
}

// suppressOverlaps drops lower-scored regions that overlap a kept region
// beyond the IoU threshold.
func suppressOverlaps(regions []region, iouThreshold float32) []region {
	sort.Slice(regions, func(i, j int) bool { return regions[i].score > regions[j].score })

	var kept []region
	for _, r := range regions {
		overlapped := false
		for _, k := range kept {
			if iou(r, k) > iouThreshold {
				overlapped = true
				break
			}
		}
		if !overlapped {
			kept = append(kept, r)
		}
	}
	return kept
}

func iou(a, b region) float32 {
	x1 := max(a.x, b.x)
	y1 := max(a.y, b.y)
	x2 := min(a.x+a.w, b.x+b.w)
	y2 := min(a.y+a.h, b.y+b.h)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	union := a.area() + b.area() - inter
	return float32(inter) / float32(union)
}

// classifyRegion assigns a coarse class to a candidate box. Seated or
// standing people read as regions at least as tall as they are wide.
func classifyRegion(r region) string {
	if r.h >= r.w {
		return "person"
	}
	return "object"
}
