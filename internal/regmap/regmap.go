// Package regmap holds register offsets, bit positions and parameters for every
// block on the chip. Adapters and the simulated chip both import it so the two
// sides of the register interface cannot drift apart.
package regmap

import "maxpower/internal/mmio"

// Block names. A block's name is also the ID of the subsystem it hosts.
const (
	BlockADC      = "adc"
	BlockAES      = "aes"
	BlockCSRNG    = "csrng"
	BlockGPIO     = "gpio"
	BlockHMAC     = "hmac"
	BlockI2C0     = "i2c0"
	BlockI2C1     = "i2c1"
	BlockI2C2     = "i2c2"
	BlockKMAC     = "kmac"
	BlockSPIHost1 = "spi1"
	BlockVerifier = "verifier"
)

// AES cipher engine.
const (
	AESKeyShare0Offset = 0x04 // 8 words
	AESKeyShare1Offset = 0x24 // 8 words
	AESIVOffset        = 0x44 // 4 words
	AESDataInOffset    = 0x54 // 4 words
	AESDataOutOffset   = 0x64 // 4 words
	AESCtrlOffset      = 0x74
	AESTriggerOffset   = 0x80
	AESStatusOffset    = 0x84

	AESCtrlOperationBit = 0 // 1 = encrypt
	AESCtrlManualBit    = 15
	AESCtrlReseedBit    = 16 // mask reseed per block

	AESTriggerStartBit = 0

	AESStatusIdleBit        = 0
	AESStatusStallBit       = 1
	AESStatusOutputLostBit  = 2
	AESStatusOutputValidBit = 3
	AESStatusInputReadyBit  = 4

	AESKeyWords   = 8
	AESBlockWords = 4
	AESBlockBytes = 16
)

var (
	AESCtrlModeField   = mmio.Field32{Mask: 0x3f, Index: 1}
	AESCtrlKeyLenField = mmio.Field32{Mask: 0x7, Index: 7}
)

const (
	AESModeCBC   = 0x02
	AESKeyLen256 = 0x4
)

// HMAC / SHA-256 hash engine.
const (
	HMACIntrStateOffset      = 0x00
	HMACCfgOffset            = 0x10
	HMACCmdOffset            = 0x14
	HMACStatusOffset         = 0x18
	HMACMsgLengthLowerOffset = 0x1c
	HMACMsgLengthUpperOffset = 0x20
	HMACKeyOffset            = 0x24 // 8 words
	HMACDigestOffset         = 0x44 // 8 words
	HMACMsgFifoOffset        = 0x800

	HMACIntrDoneBit = 0
	HMACIntrErrBit  = 2

	HMACCfgHMACEnBit     = 0
	HMACCfgSHAEnBit      = 1
	HMACCfgEndianSwapBit = 2
	HMACCfgDigestSwapBit = 3

	HMACCmdHashStartBit   = 0
	HMACCmdHashProcessBit = 1

	HMACStatusFifoEmptyBit = 0
	HMACStatusFifoFullBit  = 1
	HMACStatusIdleBit      = 2

	HMACKeyWords    = 8
	HMACDigestWords = 8

	// HMACMsgBufferBytes is the message window the engine accepts per operation.
	HMACMsgBufferBytes = 1024
)

// KMAC engine.
const (
	KMACCfgOffset            = 0x14
	KMACCmdOffset            = 0x18
	KMACStatusOffset         = 0x1c
	KMACEntropyPeriodOffset  = 0x24
	KMACEntropyRefreshOffset = 0x2c
	KMACKeyShare0Offset      = 0x30 // 16 words
	KMACKeyShare1Offset      = 0x70 // 16 words
	KMACKeyLenOffset         = 0xb0
	KMACPrefixOffset         = 0xb4 // 11 words
	KMACStateOffset          = 0x400
	KMACStateShareOffset     = 0x100
	KMACMsgFifoOffset        = 0x800

	KMACCfgKMACEnBit      = 0
	KMACCfgMsgEndianBit   = 8
	KMACCfgStateEndianBit = 9
	KMACCfgSideloadBit    = 12
	KMACCfgFastProcessBit = 19
	KMACCfgMsgMaskBit     = 20

	KMACStatusIdleBit    = 0
	KMACStatusAbsorbBit  = 1
	KMACStatusSqueezeBit = 2

	KMACCmdStart   = 0x1d
	KMACCmdProcess = 0x2e
	KMACCmdRun     = 0x31
	KMACCmdDone    = 0x16

	KMACKeyWords    = 16
	KMACPrefixWords = 11
	KMACStateBytes  = 200

	// KMACMsgBufferBytes bounds a single absorb.
	KMACMsgBufferBytes = 4096

	KMACKeyLen256 = 0x2
)

var (
	KMACCfgStrengthField    = mmio.Field32{Mask: 0x7, Index: 1}
	KMACCfgModeField        = mmio.Field32{Mask: 0x3, Index: 4}
	KMACCfgEntropyModeField = mmio.Field32{Mask: 0x3, Index: 16}
	KMACCmdField            = mmio.Field32{Mask: 0x3f, Index: 0}

	KMACEntropyPrescalerField = mmio.Field32{Mask: 0x3ff, Index: 0}
	KMACEntropyWaitTimerField = mmio.Field32{Mask: 0xffff, Index: 16}
	KMACHashThresholdField    = mmio.Field32{Mask: 0x3ff, Index: 0}
)

const (
	KMACStrength256 = 0x4
	KMACModeCSHAKE  = 0x3
	KMACEntropyEDN  = 0x1
)

// Signature verifier (big-number accelerator running a modexp program).
const (
	VerifierIntrStateOffset = 0x00
	VerifierCmdOffset       = 0x10
	VerifierStatusOffset    = 0x14
	VerifierErrBitsOffset   = 0x18
	VerifierDmemOffset      = 0x4000

	VerifierIntrDoneBit = 0

	VerifierCmdExecute = 0xd8

	VerifierStatusIdle        = 0x00
	VerifierStatusBusyExecute = 0x01
	VerifierStatusLocked      = 0xff

	// DMEM layout of the modexp program, in bytes from VerifierDmemOffset.
	VerifierDmemExponent  = 0x000
	VerifierDmemModulus   = 0x020
	VerifierDmemSignature = 0x200
	VerifierDmemResult    = 0x400

	VerifierMaxWords = 96 // 3072-bit operands
)

// I2C host controllers.
const (
	I2CIntrStateOffset      = 0x00
	I2CCtrlOffset           = 0x10
	I2CStatusOffset         = 0x14
	I2CRdataOffset          = 0x18
	I2CFdataOffset          = 0x1c
	I2CFifoCtrlOffset       = 0x20
	I2CHostFifoStatusOffset = 0x28
	I2CTiming0Offset        = 0x34
	I2CTiming1Offset        = 0x38
	I2CTiming2Offset        = 0x3c
	I2CTiming3Offset        = 0x40
	I2CTiming4Offset        = 0x44
	I2CTargetIDOffset       = 0x50

	I2CCtrlEnableHostBit   = 0
	I2CCtrlEnableTargetBit = 1
	I2CCtrlLineLoopbackBit = 2

	I2CStatusFmtFullBit  = 0
	I2CStatusFmtEmptyBit = 2
	I2CStatusHostIdleBit = 4
	I2CStatusRxEmptyBit  = 6

	I2CFifoCtrlRxRstBit  = 0
	I2CFifoCtrlFmtRstBit = 1

	I2CFdataStartBit = 8
	I2CFdataStopBit  = 9
	I2CFdataReadBit  = 10

	I2CFifoDepth = 64
)

var (
	I2CFdataByteField   = mmio.Field32{Mask: 0xff, Index: 0}
	I2CFmtLevelField    = mmio.Field32{Mask: 0xfff, Index: 0}
	I2CRxLevelField     = mmio.Field32{Mask: 0xfff, Index: 16}
	I2CTargetAddr0Field = mmio.Field32{Mask: 0x7f, Index: 0}
	I2CTargetMask0Field = mmio.Field32{Mask: 0x7f, Index: 7}
	I2CTargetAddr1Field = mmio.Field32{Mask: 0x7f, Index: 14}
	I2CTargetMask1Field = mmio.Field32{Mask: 0x7f, Index: 21}
	I2CTimingLowField   = mmio.Field32{Mask: 0x1fff, Index: 0}
	I2CTimingHighField  = mmio.Field32{Mask: 0x1fff, Index: 16}
)

// SPI host controllers.
const (
	SPIHostIntrStateOffset  = 0x00
	SPIHostControlOffset    = 0x10
	SPIHostStatusOffset     = 0x14
	SPIHostConfigOptsOffset = 0x18
	SPIHostCSIDOffset       = 0x1c
	SPIHostCommandOffset    = 0x20
	SPIHostTxDataOffset     = 0x28

	SPIHostControlSPIEnBit    = 31
	SPIHostControlSwRstBit    = 30
	SPIHostControlOutputEnBit = 29

	SPIHostStatusReadyBit   = 31
	SPIHostStatusActiveBit  = 30
	SPIHostStatusTxFullBit  = 29
	SPIHostStatusTxEmptyBit = 28

	SPIHostTxDepth = 72 // words
)

var (
	SPIHostStatusTxQDField     = mmio.Field32{Mask: 0xff, Index: 0}
	SPIHostCommandLenField     = mmio.Field32{Mask: 0x1ff, Index: 0}
	SPIHostCommandSpeedField   = mmio.Field32{Mask: 0x3, Index: 10}
	SPIHostCommandDirField     = mmio.Field32{Mask: 0x3, Index: 12}
	SPIHostConfigClkDivField   = mmio.Field32{Mask: 0xffff, Index: 0}
	SPIHostConfigCSNIdleField  = mmio.Field32{Mask: 0xf, Index: 16}
	SPIHostConfigCSNTrailField = mmio.Field32{Mask: 0xf, Index: 20}
	SPIHostConfigCSNLeadField  = mmio.Field32{Mask: 0xf, Index: 24}
)

const (
	SPIHostSpeedQuad = 0x2
	SPIHostDirTx     = 0x2
)

// ADC controller (analog sampler).
const (
	ADCEnCtlOffset         = 0x30
	ADCPdCtlOffset         = 0x34
	ADCLpSampleCtlOffset   = 0x38
	ADCSampleCtlOffset     = 0x3c
	ADCFsmRstOffset        = 0x40
	ADCChn0FilterCtlOffset = 0x44 // 8 filters
	ADCChn1FilterCtlOffset = 0x64 // 8 filters
	ADCFilterStatusOffset  = 0x8c

	ADCEnCtlEnableBit  = 0
	ADCEnCtlOneShotBit = 1

	ADCPdCtlLowPowerBit = 0

	ADCFilterEnableBit  = 31
	ADCFilterInRangeBit = 0

	ADCNumFilters  = 8
	ADCNumChannels = 2

	ADCMaxVoltage = 0x3ff
)

var (
	ADCPdCtlPowerUpTimeField = mmio.Field32{Mask: 0xf, Index: 4}
	ADCPdCtlWakeupTimeField  = mmio.Field32{Mask: 0xffffff, Index: 8}
	ADCFilterMinField        = mmio.Field32{Mask: 0x3ff, Index: 2}
	ADCFilterMaxField        = mmio.Field32{Mask: 0x3ff, Index: 18}
)

// CSRNG entropy engine.
const (
	CSRNGCtrlOffset     = 0x14
	CSRNGCmdReqOffset   = 0x18
	CSRNGSwCmdStsOffset = 0x24

	CSRNGSwCmdStsRdyBit = 0
	CSRNGSwCmdStsAckBit = 1

	CSRNGCmdInstantiate = 0x1
	CSRNGCmdReseed      = 0x2
	CSRNGCmdGenerate    = 0x3

	MultiBitBool4True  = 0x6
	MultiBitBool4False = 0x9
)

var (
	CSRNGSwCmdStsField = mmio.Field32{Mask: 0x7, Index: 2}
	CSRNGCmdACmdField  = mmio.Field32{Mask: 0xf, Index: 0}
	CSRNGCmdCLenField  = mmio.Field32{Mask: 0xf, Index: 4}
	CSRNGCmdFlag0Field = mmio.Field32{Mask: 0xf, Index: 8}
	CSRNGCmdGLenField  = mmio.Field32{Mask: 0x7ffff, Index: 12}
)

// GPIO (epoch marker pin).
const (
	GPIODirectOutOffset      = 0x14
	GPIOMaskedOutLowerOffset = 0x18
	GPIODirectOEOffset       = 0x1c
	GPIOMaskedOELowerOffset  = 0x20
)

var (
	GPIOMaskedDataField = mmio.Field32{Mask: 0xffff, Index: 0}
	GPIOMaskedMaskField = mmio.Field32{Mask: 0xffff, Index: 16}
)
