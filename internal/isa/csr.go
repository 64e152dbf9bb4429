package isa

// CSR addresses. Standard addresses follow the RISC-V privileged
// architecture; CSR_LD_TAG/CSR_SD_TAG are this simulator's custom
// extension, placed in the unallocated custom read/write CSR range
// (0xBC0-0xBCF).
const (
	CsrFFlags uint16 = 0x001
	CsrFRM    uint16 = 0x002
	CsrFCSR   uint16 = 0x003

	CsrCycle   uint16 = 0xC00
	CsrTime    uint16 = 0xC01
	CsrInstret uint16 = 0xC02

	CsrSStatus    uint16 = 0x100
	CsrSIE        uint16 = 0x104
	CsrSTVec      uint16 = 0x105
	CsrSScratch   uint16 = 0x140
	CsrSEPC       uint16 = 0x141
	CsrSCause     uint16 = 0x142
	CsrSBadAddr   uint16 = 0x143
	CsrSIP        uint16 = 0x144
	CsrSPTBR      uint16 = 0x180
	CsrSTimeCmp   uint16 = 0x121

	CsrMStatus  uint16 = 0x300
	CsrMIE      uint16 = 0x304
	CsrMTVec    uint16 = 0x305
	CsrMScratch uint16 = 0x340
	CsrMEPC     uint16 = 0x341
	CsrMCause   uint16 = 0x342
	CsrMBadAddr uint16 = 0x343
	CsrMIP      uint16 = 0x344

	CsrMCPUID  uint16 = 0xF00
	CsrMImpID  uint16 = 0xF01
	CsrMHartID uint16 = 0xF10

	CsrMToHost   uint16 = 0x780
	CsrMFromHost uint16 = 0x781

	// CsrLdTag and CsrSdTag are the custom tag-policy CSRs: bit k set
	// means "a memory word tagged k traps" on load and store
	// respectively.
	CsrLdTag uint16 = 0xBC0
	CsrSdTag uint16 = 0xBC1
)

// MSTATUS field masks and shifts.
const (
	MStatusIE    uint64 = 1 << 0
	MStatusPRV   uint64 = 0x3 << 1
	MStatusIE1   uint64 = 1 << 3
	MStatusPRV1  uint64 = 0x3 << 4
	MStatusIE2   uint64 = 1 << 6
	MStatusPRV2  uint64 = 0x3 << 7
	MStatusFS    uint64 = 0x3 << 13
	MStatusXS    uint64 = 0x3 << 15
	MStatusMPRV  uint64 = 1 << 16
	MStatusVM    uint64 = 0x1f << 17
	MStatusSD    uint64 = 1 << 63

	MStatusPRVShift  = 1
	MStatusPRV1Shift = 4
	MStatusPRV2Shift = 7
	MStatusVMShift   = 17
)

// Privilege levels, matching MSTATUS's 2-bit PRV encoding.
const (
	PrivUser       uint8 = 0
	PrivSupervisor uint8 = 1
	PrivHypervisor uint8 = 2
	PrivMachine    uint8 = 3
)

// MIP/MIE interrupt bit positions.
const (
	MipSSIP uint64 = 1 << 1
	MipHSIP uint64 = 1 << 2
	MipMSIP uint64 = 1 << 3
	MipSTIP uint64 = 1 << 5
	MipHTIP uint64 = 1 << 6
	MipMTIP uint64 = 1 << 7
)

// DefaultMtvec is the base of the trap vector table; traps are delivered
// to DefaultMtvec + 0x40*PRV. The reset PC does not derive from it: a hart
// resets its PC to 0.
const DefaultMtvec uint64 = 0x100
