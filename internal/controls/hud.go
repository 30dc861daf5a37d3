package controls

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// NetStats reads the link statistics of one network interface for this process.
type NetStats struct {
	proc  procfs.Proc
	iface string
}

func NewNetStats(iface string) (*NetStats, error) {
	p, err := procfs.Self()
	if err != nil {
		return nil, fmt.Errorf("procfs could not get process: %w", err)
	}
	return &NetStats{proc: p, iface: iface}, nil
}

func (n *NetStats) Read() (procfs.NetDevLine, error) {
	netDev, err := n.proc.NetDev()
	if err != nil {
		return procfs.NetDevLine{}, fmt.Errorf("failed getting netstat: %w", err)
	}

	stats, ok := netDev[n.iface]
	if !ok {
		return procfs.NetDevLine{}, fmt.Errorf("failed getting %s stats: not found", n.iface)
	}
	return stats, nil
}

// NetLine is the link health line every seat HUD starts with.
func NetLine(netInfo procfs.NetDevLine) string {
	return fmt.Sprintf("RxPkt:%d | RxErr:%d | RxDrop: %d | TxPkt:%d | TxErr:%d | TxDrop: %d",
		netInfo.RxPackets,
		netInfo.RxErrors,
		netInfo.RxDropped,
		netInfo.TxPackets,
		netInfo.TxErrors,
		netInfo.TxDropped,
	)
}
