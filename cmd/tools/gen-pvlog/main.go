// Command gen-pvlog generates sample .pvlog recordings for testing replay.
package main

import (
	"flag"
	"log"

	"github.com/aperture-data/phi.vision/internal/vision/stream"
)

func main() {
	output := flag.String("o", "sample.pvlog", "output path")
	frames := flag.Int("n", 100, "number of frames")
	fps := flag.Float64("fps", 10.0, "frame rate of the generated stream")
	seed := flag.Int64("seed", 1, "random seed (0 derives one from the clock)")
	noise := flag.Int("noise", 3, "noise candidates per frame")
	flag.Parse()

	rec, err := stream.NewRecorder(*output, "sample")
	if err != nil {
		log.Fatalf("Failed to create log: %v", err)
	}
	defer rec.Close()

	gen := stream.NewSyntheticSource("sample", *seed)
	gen.FrameRate = *fps
	gen.NoiseCount = *noise

	for i := 0; i < *frames; i++ {
		if err := rec.Record(gen.NextFrame()); err != nil {
			log.Fatalf("Failed to record frame %d: %v", i+1, err)
		}
		if (i+1)%1000 == 0 {
			log.Printf("%d/%d frames", i+1, *frames)
		}
	}
	log.Printf("✓ Created: %s (%d frames)", *output, rec.FrameCount())
}
