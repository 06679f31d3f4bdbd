package domain

import "fmt"

// DynamicMajor is the major number handed out when none is configured.
const DynamicMajor = 254

// DevNum is a major/minor device number pair.
type DevNum struct {
	Major int `json:"major" yaml:"major"`
	Minor int `json:"minor" yaml:"minor"`
}

// MkDev builds a DevNum.
func MkDev(major, minor int) DevNum {
	return DevNum{Major: major, Minor: minor}
}

// String implements fmt.Stringer ("254:0").
func (d DevNum) String() string {
	return fmt.Sprintf("%d:%d", d.Major, d.Minor)
}

// DeviceName returns the node name for device index i.
func DeviceName(i int) string {
	return fmt.Sprintf("vault%d", i)
}
