package network

import (
	"github.com/powerlink-go/plstack/pkg/pdo"
)

// mnFrameIO implements dll.FrameIO over a Network's RemoteNode set,
// closing the capability-reference seam pkg/dll's MNEngine was built
// against (spec.md §3): the cycle engine never sees an ObjectDictionary,
// only these three PDO-mapped byte-slice operations.
type mnFrameIO struct {
	net *Network
}

func (f *mnFrameIO) BuildPReqPayload(nodeID uint8) ([]byte, uint8, error) {
	rn := f.net.remoteNode(nodeID)
	if rn == nil || rn.txChannel == nil {
		return nil, 0, nil
	}
	buf := make([]byte, (rn.txChannel.TotalBits+7)/8)
	if err := pdo.ProjectToFrame(buf, rn.txChannel, rn.Dict); err != nil {
		return nil, 0, err
	}
	return buf, rn.txChannel.Version, nil
}

func (f *mnFrameIO) ApplyPResPayload(nodeID uint8, payload []byte, pdoVersion uint8) error {
	rn := f.net.remoteNode(nodeID)
	if rn == nil || rn.rxChannel == nil {
		return nil
	}
	return pdo.ApplyFromFrame(payload, rn.rxChannel, rn.Dict, pdoVersion)
}

// BuildOwnPRes projects the MN's own local TPDO channel (spec.md §4.5
// step 3, "the MN's own PRes, if it also produces process data").
func (f *mnFrameIO) BuildOwnPRes() ([]byte, uint8, bool) {
	if f.net.ownTPDO == nil {
		return nil, 0, false
	}
	buf := make([]byte, (f.net.ownTPDO.TotalBits+7)/8)
	if err := pdo.ProjectToFrame(buf, f.net.ownTPDO, f.net.Dict); err != nil {
		f.net.logger.WithError(err).Warn("network: failed to project MN's own PRes")
		return nil, 0, false
	}
	return buf, f.net.ownTPDO.Version, true
}
