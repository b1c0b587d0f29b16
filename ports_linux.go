package main

func defaultPort() string {
	return "/dev/ttyUSB0"
}

func defaultProbePatterns() []string {
	return []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*"}
}
