package streaming

// defaultBandwidthKbps is assigned to any resolution tag not found in the
// table below.
const defaultBandwidthKbps = 1000

// bandwidthTable is the authoritative resolution -> bit rate mapping.
var bandwidthTable = map[string]int{
	"480p":  1500,
	"720p":  3000,
	"1080p": 6000,
}

// BandwidthForResolution returns the negotiated bandwidth in kbit/s for a
// resolution tag, defaultBandwidthKbps for anything unrecognized.
func BandwidthForResolution(resolution string) int {
	if bw, ok := bandwidthTable[resolution]; ok {
		return bw
	}
	return defaultBandwidthKbps
}
