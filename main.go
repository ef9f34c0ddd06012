// main.go - Command line entry point
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

func boilerPlate() {
	fmt.Println("\nXT Engine - cycle accurate IBM PC/XT emulation")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("License: GPLv3 or later")
}

func main() {
	boilerPlate()

	var (
		cpuName   string
		videoName string
		composite bool
		ramKB     uint
		speed     float64

		biosPath   string
		fd0, fd1   string
		hd0        string
		newHD      string
		newHDSize  uint
		serialDev  string
		scriptPath string
		loadAt     string
		frames     uint
		monitor    bool
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&cpuName, "cpu", "8088", "CPU model: 8088, 8086, v20, v30")
	flagSet.StringVar(&videoName, "video", "cga", "video adapter: mda, cga, ega, vga")
	flagSet.BoolVar(&composite, "composite", false, "CGA composite monitor output")
	flagSet.UintVar(&ramKB, "ram", 640, "conventional memory in KB")
	flagSet.Float64Var(&speed, "speed", 1.0, "clock multiplier (1.0 = 4.77 MHz)")
	flagSet.StringVar(&biosPath, "bios", "", "system BIOS ROM image")
	flagSet.StringVar(&fd0, "fd0", "", "floppy image for drive A:")
	flagSet.StringVar(&fd1, "fd1", "", "floppy image for drive B:")
	flagSet.StringVar(&hd0, "hd0", "", "VHD image for fixed disk 0")
	flagSet.StringVar(&newHD, "new-hd", "", "create a VHD image at this path and exit")
	flagSet.UintVar(&newHDSize, "new-hd-size", 20, "size in MB for -new-hd")
	flagSet.StringVar(&serialDev, "serial", "", "host serial device bridged to COM1")
	flagSet.StringVar(&scriptPath, "script", "", "run a Lua script after setup")
	flagSet.StringVar(&loadAt, "load", "0000:7C00", "load address for a raw program file")
	flagSet.UintVar(&frames, "frames", 0, "run n frames headless before the monitor")
	flagSet.BoolVar(&monitor, "monitor", true, "drop into the machine monitor")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./xtengine [options] [program.bin]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			flagSet.Usage()
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if newHD != "" {
		v, err := CreateVHDOfSize(newHD, uint64(newHDSize)*1024*1024)
		if err != nil {
			fmt.Printf("Error creating VHD: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created %s: %d sectors\n", newHD, v.TotalSectors())
		if err := v.Close(); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg := DefaultConfig()
	cfg.RamKB = uint32(ramKB)
	cfg.SpeedFactor = speed
	cfg.Composite = composite
	cfg.SerialBridge = serialDev

	switch strings.ToLower(cpuName) {
	case "8088":
		cfg.Cpu = CpuIntel8088
	case "8086":
		cfg.Cpu = CpuIntel8086
	case "v20":
		cfg.Cpu = CpuNecV20
	case "v30":
		cfg.Cpu = CpuNecV30
	default:
		fmt.Printf("Error: unknown CPU %q\n", cpuName)
		os.Exit(1)
	}

	switch strings.ToLower(videoName) {
	case "mda":
		cfg.Video = VideoMDA
	case "cga":
		cfg.Video = VideoCGA
	case "ega":
		cfg.Video = VideoEGA
	case "vga":
		cfg.Video = VideoVGA
	default:
		fmt.Printf("Error: unknown video adapter %q\n", videoName)
		os.Exit(1)
	}

	cfg.FloppyDrives = 0
	if fd0 != "" {
		cfg.FloppyDrives = 1
	}
	if fd1 != "" {
		cfg.FloppyDrives = 2
	}
	if hd0 != "" {
		cfg.HardDrives = 1
	}

	m, err := NewMachine(cfg)
	if err != nil {
		fmt.Printf("Error building machine: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Printf("Machine: close: %v", err)
		}
	}()

	if biosPath != "" {
		if err := m.MountBIOS(biosPath); err != nil {
			fmt.Printf("Error loading BIOS: %v\n", err)
			os.Exit(1)
		}
	}
	if fd0 != "" {
		if err := m.MountFloppy(0, fd0); err != nil {
			fmt.Printf("Error mounting floppy: %v\n", err)
			os.Exit(1)
		}
	}
	if fd1 != "" {
		if err := m.MountFloppy(1, fd1); err != nil {
			fmt.Printf("Error mounting floppy: %v\n", err)
			os.Exit(1)
		}
	}
	if hd0 != "" {
		if err := m.AttachHardDisk(0, hd0); err != nil {
			fmt.Printf("Error attaching fixed disk: %v\n", err)
			os.Exit(1)
		}
	}

	m.Reset()

	if program := flagSet.Arg(0); program != "" {
		data, err := os.ReadFile(program)
		if err != nil {
			fmt.Printf("Error reading program: %v\n", err)
			os.Exit(1)
		}
		seg, ofs, _, ok := ParseSegOfs(loadAt, nil)
		if !ok {
			fmt.Printf("Error: bad -load address %q\n", loadAt)
			os.Exit(1)
		}
		if err := m.LoadProgram(data, seg, ofs); err != nil {
			fmt.Printf("Error loading program: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded %s at %04X:%04X\n", program, seg, ofs)
	}

	if scriptPath != "" {
		if err := RunScript(m, scriptPath, nil); err != nil {
			fmt.Printf("Script error: %v\n", err)
			os.Exit(1)
		}
	}

	if frames > 0 {
		m.Exec().SetState(ExecRunning)
		for i := uint(0); i < frames && m.Exec().State() == ExecRunning; i++ {
			m.RunFrame()
		}
		fmt.Printf("Ran %d frames, %d cycles, %d instructions\n",
			m.Frames(), m.Cycles(), m.Instructions())
		if !monitor {
			return
		}
	}

	if err := NewMonitor(m).Run(); err != nil {
		fmt.Printf("Monitor error: %v\n", err)
		os.Exit(1)
	}
}
