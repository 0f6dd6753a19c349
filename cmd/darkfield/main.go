// Package main provides the darkfield CLI.
package main

import (
	"fmt"
	"os"

	"github.com/voxelforge/darkfield/filter"
	"github.com/voxelforge/darkfield/internal/cpu"
	"github.com/voxelforge/darkfield/internal/gpu"
	"github.com/voxelforge/darkfield/volume"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("darkfield %s\n", version)
			return
		case "gpu":
			listGPU()
			return
		case "check":
			if err := selfCheck(); err != nil {
				fmt.Fprintf(os.Stderr, "check failed: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Println("darkfield - GPU dark-field suppression for ultrasound volumes")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  gpu        List WebGPU adapters")
	fmt.Println("  check      Run the thresholding stage on sample data")
}

func listGPU() {
	if !gpu.IsAvailable() {
		fmt.Println("WebGPU: not available")
		return
	}

	adapters, err := gpu.ListAdapters()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpu: %v\n", err)
		os.Exit(1)
	}
	for _, info := range adapters {
		fmt.Printf("%s %s (%s)\n", info.Vendor, info.Device, info.Description)
	}
}

// selfCheck runs the stage over a small volume on the CPU backend and,
// when a GPU is reachable, again on the GPU, comparing the results.
func selfCheck() error {
	geom := volume.Geometry{Width: 64, Height: 32, Depth: 8}
	data := make([]int16, geom.NumVoxels())
	for i := range data {
		data[i] = int16(i%501 - 250)
	}
	const threshold = 100.0

	want, err := filter.Run[int16, uint8](cpu.New(), data, geom, threshold)
	if err != nil {
		return fmt.Errorf("cpu stage: %w", err)
	}
	fmt.Printf("cpu:  %s volume thresholded at %.0f\n", geom, threshold)

	if !gpu.IsAvailable() {
		fmt.Println("gpu:  not available, skipped")
		return nil
	}

	dev, err := gpu.New()
	if err != nil {
		return fmt.Errorf("gpu init: %w", err)
	}
	defer dev.Release()

	got, err := filter.Run[int16, uint8](dev, data, geom, threshold)
	if err != nil {
		return fmt.Errorf("gpu stage: %w", err)
	}
	fmt.Printf("gpu:  %s\n", dev.Name())

	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("voxel %d differs: cpu %d, gpu %d", i, want[i], got[i])
		}
	}
	fmt.Println("ok:   cpu and gpu outputs match")
	return nil
}
