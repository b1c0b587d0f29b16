//go:build !linux

package main

import "runtime"

func defaultPort() string {
	if runtime.GOOS == "windows" {
		return "COM1"
	}
	return "/dev/tty.usbserial"
}

func defaultProbePatterns() []string {
	if runtime.GOOS == "windows" {
		return []string{"COM*"}
	}
	return []string{"/dev/tty.usbserial*", "/dev/tty.usbmodem*", "/dev/cu.usbserial*"}
}
