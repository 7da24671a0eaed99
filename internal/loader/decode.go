package loader

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // decoder registration
	_ "image/png"  // decoder registration
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/Faultbox/pakview/internal/imagemeta"
	"github.com/Faultbox/pakview/pkg/pak"
)

// process performs one load while holding a concurrency slot. Every
// failure is converted to a job-level kind and delivered through the
// normal completion path; nothing here aborts the scheduler.
func (p *Pipeline) process(job *Job) {
	job.setState(StateProcessing)
	key := pak.Normalize(job.ArchivePath)

	p.registry.inc(key)
	defer p.registry.dec(key)

	info, err := os.Stat(job.ArchivePath)
	if err != nil {
		p.finish(job, KindDecodeFailed, fmt.Errorf("stat archive: %w", err))
		return
	}
	job.fileSize = info.Size()
	job.modTime = info.ModTime()

	// Cache probe comes before any archive I/O; a hit skips handle
	// acquisition entirely.
	if img, ok := p.cache.Get(job.ArchivePath, job.EntryPath, job.fileSize, job.modTime); ok {
		p.deliver(job, p.render(img, job))
		return
	}

	pool := p.pool(job.ArchivePath)
	handle, err := pool.acquire(p.opts.HandleTimeout)
	if err != nil {
		// Pool-level failures are structural, not per-entry content
		// problems; they surface to the job as a decode failure.
		p.finish(job, KindDecodeFailed, fmt.Errorf("acquiring handle: %w", err))
		return
	}
	defer pool.release(handle)

	if !handle.Contains(job.EntryPath) {
		p.finish(job, KindEntryNotFound, fmt.Errorf("%s missing from %s", job.EntryPath, job.ArchivePath))
		return
	}

	magic, err := handle.ReadHeader(job.EntryPath, imagemeta.HeaderLen)
	if err != nil {
		p.finish(job, KindDecodeFailed, fmt.Errorf("reading entry header: %w", err))
		return
	}
	if !imagemeta.IsImageHeader(magic) {
		p.finish(job, KindInvalidFormat, fmt.Errorf("%s is not a PNG or JPEG entry", job.EntryPath))
		return
	}

	header, err := handle.ReadHeader(job.EntryPath, p.opts.ProbeBudget)
	if err != nil {
		p.finish(job, KindDecodeFailed, fmt.Errorf("probing entry: %w", err))
		return
	}
	if w, h, ok := imagemeta.ProbeDimensions(header); ok {
		p.log.Debug("probed entry",
			zap.Uint64("job", job.id),
			zap.String("entry", job.EntryPath),
			zap.Int("width", w),
			zap.Int("height", h))
	}

	rc, _, err := handle.OpenEntry(job.EntryPath)
	if err != nil {
		p.finish(job, KindDecodeFailed, fmt.Errorf("opening entry: %w", err))
		return
	}
	buf := p.bufs.Get()
	_, err = io.Copy(buf, rc)
	rc.Close()
	if err != nil {
		p.bufs.Put(buf)
		p.finish(job, KindDecodeFailed, fmt.Errorf("reading entry: %w", err))
		return
	}

	img, _, err := image.Decode(bytes.NewReader(buf.Bytes()))
	// The raw compressed bytes are not needed past this point; drop the
	// buffer back to the pool before the pixel work.
	p.bufs.Put(buf)
	if err != nil {
		p.finish(job, KindDecodeFailed, fmt.Errorf("decoding %s: %w", job.EntryPath, err))
		return
	}

	texture := p.render(img, job)
	p.cache.Put(job.ArchivePath, job.EntryPath, job.fileSize, job.modTime, texture.Image)
	p.deliver(job, texture)
}

// render converts a decoded image to the pipeline's fixed RGBA form,
// downscaling to the job's target bounds so oversized originals never
// reach the consumer at full resolution. The result is treated as
// immutable from here on.
func (p *Pipeline) render(src image.Image, job *Job) *Texture {
	bounds := src.Bounds()
	outW, outH := fitWithin(bounds.Dx(), bounds.Dy(), job.TargetWidth, job.TargetHeight)

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	if outW == bounds.Dx() && outH == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}

	id := TextureID(p.nextTexID.Add(1))
	p.refs.Retain(id)
	return &Texture{ID: id, Image: dst, Width: outW, Height: outH}
}

func (p *Pipeline) deliver(job *Job, texture *Texture) {
	job.texture = texture
	p.finish(job, KindNone, nil)
}

// fitWithin scales (w, h) down to fit the target box preserving aspect
// ratio. Zero target dimensions, or a source already inside the box, keep
// the native size. The pipeline never upscales.
func fitWithin(w, h, targetW, targetH int) (int, int) {
	if targetW <= 0 || targetH <= 0 || (w <= targetW && h <= targetH) {
		return w, h
	}
	scaleW := float64(targetW) / float64(w)
	scaleH := float64(targetH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	outW := int(float64(w) * scale)
	outH := int(float64(h) * scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH
}
