package sim

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
	"maxpower/internal/trace"
	"maxpower/internal/vectors"
)

func newTestChip(t *testing.T, opts Options) *Chip {
	t.Helper()
	if opts.Period == 0 {
		opts.Period = 10 * time.Nanosecond
	}
	c, err := NewChip(opts)
	require.NoError(t, err)
	return c
}

func region(t *testing.T, c *Chip, name string) mmio.Region {
	t.Helper()
	r, err := c.Region(name)
	require.NoError(t, err)
	return r
}

func pollBit(t *testing.T, r mmio.Region, offset uint32, bit uint, limit int) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if mmio.GetBit32(r, offset, bit) {
			return
		}
	}
	t.Fatalf("bit %d at 0x%x never set after %d polls", bit, offset, limit)
}

func readWords(r mmio.Region, offset uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = r.Read32(offset + uint32(4*i))
	}
	return out
}

func writeBlock(r mmio.Region, offset uint32, words []uint32) {
	for i, w := range words {
		r.Write32(offset+uint32(4*i), w)
	}
}

func TestBus_AdvancesClockAndRecordsWrites(t *testing.T) {
	rec := trace.NewRecorder()
	c := newTestChip(t, Options{Sink: rec})
	gpio := region(t, c, regmap.BlockGPIO)

	require.Equal(t, time.Duration(0), c.Clock().Now())
	gpio.Write32(regmap.GPIOMaskedOutLowerOffset, 1<<16|1)
	_ = gpio.Read32(regmap.GPIODirectOutOffset)
	require.Equal(t, 20*time.Nanosecond, c.Clock().Now())

	events := rec.Snapshot()
	require.Len(t, events, 1)
	require.Equal(t, trace.EventRegisterWrite, events[0].Kind)
	require.Equal(t, regmap.BlockGPIO, events[0].Block)
	require.Equal(t, 10*time.Nanosecond, events[0].Tick)
	require.Equal(t, uint32(1), gpio.Read32(regmap.GPIODirectOutOffset))
}

func TestAES_EncryptsCBCBlockWithMaskedKey(t *testing.T) {
	c := newTestChip(t, Options{Latency: map[string]time.Duration{regmap.BlockAES: 600 * time.Nanosecond}})
	r := region(t, c, regmap.BlockAES)

	share0 := make([]byte, len(vectors.AESKey))
	for i := range share0 {
		share0[i] = vectors.AESKey[i] ^ vectors.AESKeyShare1[i]
	}
	ctrl := mmio.Bit32Write(0, regmap.AESCtrlOperationBit, true)
	ctrl = mmio.Field32Write(ctrl, regmap.AESCtrlModeField, regmap.AESModeCBC)
	ctrl = mmio.Field32Write(ctrl, regmap.AESCtrlKeyLenField, regmap.AESKeyLen256)
	ctrl = mmio.Bit32Write(ctrl, regmap.AESCtrlManualBit, true)
	r.Write32(regmap.AESCtrlOffset, ctrl)
	writeBlock(r, regmap.AESKeyShare0Offset, mmio.BytesToWords(share0))
	writeBlock(r, regmap.AESKeyShare1Offset, mmio.BytesToWords(vectors.AESKeyShare1))
	writeBlock(r, regmap.AESIVOffset, mmio.BytesToWords(vectors.AESIV))
	writeBlock(r, regmap.AESDataInOffset, mmio.BytesToWords(vectors.AESPlaintext))

	require.True(t, mmio.GetBit32(r, regmap.AESStatusOffset, regmap.AESStatusIdleBit))
	require.False(t, mmio.GetBit32(r, regmap.AESStatusOffset, regmap.AESStatusOutputValidBit))

	r.Write32(regmap.AESTriggerOffset, 1<<regmap.AESTriggerStartBit)
	require.False(t, mmio.GetBit32(r, regmap.AESStatusOffset, regmap.AESStatusIdleBit))
	pollBit(t, r, regmap.AESStatusOffset, regmap.AESStatusOutputValidBit, 100)

	got := mmio.WordsToBytes(readWords(r, regmap.AESDataOutOffset, regmap.AESBlockWords))
	require.Equal(t, vectors.AESCiphertext, got)
}

func TestHMAC_DerivesKeyThenMACs(t *testing.T) {
	c := newTestChip(t, Options{})
	r := region(t, c, regmap.BlockHMAC)

	r.Write32(regmap.HMACCfgOffset, 1<<regmap.HMACCfgSHAEnBit)
	r.Write32(regmap.HMACCmdOffset, 1<<regmap.HMACCmdHashStartBit)
	for _, b := range vectors.HMACLongKey {
		r.Write8(regmap.HMACMsgFifoOffset, b)
	}
	require.Equal(t, uint32(len(vectors.HMACLongKey)*8), r.Read32(regmap.HMACMsgLengthLowerOffset))
	r.Write32(regmap.HMACCmdOffset, 1<<regmap.HMACCmdHashProcessBit)
	pollBit(t, r, regmap.HMACIntrStateOffset, regmap.HMACIntrDoneBit, 10)
	key := readWords(r, regmap.HMACDigestOffset, regmap.HMACDigestWords)
	r.Write32(regmap.HMACIntrStateOffset, 1<<regmap.HMACIntrDoneBit)

	writeBlock(r, regmap.HMACKeyOffset, key)
	r.Write32(regmap.HMACCfgOffset, 1<<regmap.HMACCfgSHAEnBit|1<<regmap.HMACCfgHMACEnBit)
	r.Write32(regmap.HMACCmdOffset, 1<<regmap.HMACCmdHashStartBit)
	for _, b := range vectors.HMACMessage {
		r.Write8(regmap.HMACMsgFifoOffset, b)
	}
	require.True(t, mmio.GetBit32(r, regmap.HMACStatusOffset, regmap.HMACStatusIdleBit))
	r.Write32(regmap.HMACCmdOffset, 1<<regmap.HMACCmdHashProcessBit)
	pollBit(t, r, regmap.HMACIntrStateOffset, regmap.HMACIntrDoneBit, 10)

	got := mmio.WordsToBytes(readWords(r, regmap.HMACDigestOffset, regmap.HMACDigestWords))
	require.Equal(t, vectors.HMACDigest, got)
}

func TestHMAC_OverrunRaisesError(t *testing.T) {
	c := newTestChip(t, Options{})
	r := region(t, c, regmap.BlockHMAC)
	r.Write32(regmap.HMACCmdOffset, 1<<regmap.HMACCmdHashStartBit)
	for i := 0; i <= regmap.HMACMsgBufferBytes/4; i++ {
		r.Write32(regmap.HMACMsgFifoOffset, 0)
	}
	require.True(t, mmio.GetBit32(r, regmap.HMACIntrStateOffset, regmap.HMACIntrErrBit))
	require.True(t, mmio.GetBit32(r, regmap.HMACStatusOffset, regmap.HMACStatusFifoFullBit))
}

func TestKMAC_ProducesSampleDigestAsShares(t *testing.T) {
	c := newTestChip(t, Options{})
	r := region(t, c, regmap.BlockKMAC)

	cfg := mmio.Bit32Write(0, regmap.KMACCfgKMACEnBit, true)
	cfg = mmio.Field32Write(cfg, regmap.KMACCfgStrengthField, regmap.KMACStrength256)
	cfg = mmio.Field32Write(cfg, regmap.KMACCfgModeField, regmap.KMACModeCSHAKE)
	r.Write32(regmap.KMACCfgOffset, cfg)
	r.Write32(regmap.KMACKeyLenOffset, regmap.KMACKeyLen256)
	writeBlock(r, regmap.KMACKeyShare0Offset, mmio.BytesToWords(vectors.KMACKey))
	writeBlock(r, regmap.KMACKeyShare1Offset, make([]uint32, 8))
	prefix := append(encodeString([]byte("KMAC")), encodeString(vectors.KMACCustomization)...)
	writeBlock(r, regmap.KMACPrefixOffset, mmio.BytesToWords(prefix))
	require.True(t, mmio.GetBit32(r, regmap.KMACStatusOffset, regmap.KMACStatusIdleBit))

	r.Write32(regmap.KMACCmdOffset, regmap.KMACCmdStart)
	mmio.WriteWords(r, regmap.KMACMsgFifoOffset, mmio.BytesToWords(vectors.KMACMessage))
	for _, b := range []byte{0x02, 0x00, 0x02} {
		r.Write8(regmap.KMACMsgFifoOffset, b)
	}
	require.True(t, mmio.GetBit32(r, regmap.KMACStatusOffset, regmap.KMACStatusAbsorbBit))

	r.Write32(regmap.KMACCmdOffset, regmap.KMACCmdProcess)
	pollBit(t, r, regmap.KMACStatusOffset, regmap.KMACStatusSqueezeBit, 10)

	n := vectors.KMACOutputBits / 32
	share0 := readWords(r, regmap.KMACStateOffset, n)
	share1 := readWords(r, regmap.KMACStateOffset+regmap.KMACStateShareOffset, n)
	require.NotEqual(t, share0, share1)
	digest := make([]uint32, n)
	for i := range digest {
		digest[i] = share0[i] ^ share1[i]
	}
	require.Equal(t, vectors.KMACDigest, mmio.WordsToBytes(digest))

	r.Write32(regmap.KMACCmdOffset, regmap.KMACCmdDone)
	require.True(t, mmio.GetBit32(r, regmap.KMACStatusOffset, regmap.KMACStatusIdleBit))
}

func TestVerifier_ComputesModExp(t *testing.T) {
	c := newTestChip(t, Options{Latency: map[string]time.Duration{regmap.BlockVerifier: 100 * time.Nanosecond}})
	r := region(t, c, regmap.BlockVerifier)

	le := func(b []byte) []uint32 { return mmio.BytesToWords(reverse(b)) }
	writeBlock(r, regmap.VerifierDmemOffset+regmap.VerifierDmemExponent, []uint32{vectors.RSAExponent})
	writeBlock(r, regmap.VerifierDmemOffset+regmap.VerifierDmemModulus, le(vectors.RSAModulus))
	writeBlock(r, regmap.VerifierDmemOffset+regmap.VerifierDmemSignature, le(vectors.RSASignature))
	require.Equal(t, uint32(regmap.VerifierStatusIdle), r.Read32(regmap.VerifierStatusOffset))

	r.Write32(regmap.VerifierCmdOffset, regmap.VerifierCmdExecute)
	require.Equal(t, uint32(regmap.VerifierStatusBusyExecute), r.Read32(regmap.VerifierStatusOffset))
	require.Zero(t, r.Read32(regmap.VerifierDmemOffset+regmap.VerifierDmemModulus))
	pollBit(t, r, regmap.VerifierIntrStateOffset, regmap.VerifierIntrDoneBit, 20)

	words := readWords(r, regmap.VerifierDmemOffset+regmap.VerifierDmemResult, regmap.VerifierMaxWords)
	got := new(big.Int).SetBytes(reverse(mmio.WordsToBytes(words)))
	n := new(big.Int).SetBytes(vectors.RSAModulus)
	s := new(big.Int).SetBytes(vectors.RSASignature)
	want := new(big.Int).Exp(s, big.NewInt(vectors.RSAExponent), n)
	require.Zero(t, want.Cmp(got))
}

func TestI2C_LoopbackEchoesDataBytes(t *testing.T) {
	c := newTestChip(t, Options{})
	r := region(t, c, regmap.BlockI2C1)
	r.Write32(regmap.I2CCtrlOffset, 1<<regmap.I2CCtrlLineLoopbackBit)

	r.Write32(regmap.I2CFdataOffset, 2<<1|1<<regmap.I2CFdataStartBit)
	payload := []byte{0xaa, 0x55, 0xaa}
	for i, b := range payload {
		entry := uint32(b)
		if i == len(payload)-1 {
			entry |= 1 << regmap.I2CFdataStopBit
		}
		r.Write32(regmap.I2CFdataOffset, entry)
	}
	levels := r.Read32(regmap.I2CHostFifoStatusOffset)
	require.Equal(t, uint32(4), mmio.Field32Read(levels, regmap.I2CFmtLevelField))
	require.True(t, mmio.GetBit32(r, regmap.I2CStatusOffset, regmap.I2CStatusHostIdleBit))

	r.Write32(regmap.I2CCtrlOffset, 1<<regmap.I2CCtrlLineLoopbackBit|1<<regmap.I2CCtrlEnableHostBit)
	pollBit(t, r, regmap.I2CStatusOffset, regmap.I2CStatusFmtEmptyBit, 10)

	levels = r.Read32(regmap.I2CHostFifoStatusOffset)
	require.Equal(t, uint32(len(payload)), mmio.Field32Read(levels, regmap.I2CRxLevelField))
	for _, b := range payload {
		require.Equal(t, uint32(b), r.Read32(regmap.I2CRdataOffset))
	}
	require.True(t, mmio.GetBit32(r, regmap.I2CStatusOffset, regmap.I2CStatusRxEmptyBit))
}

func TestSPIHost_HoldsCommandUntilEnabled(t *testing.T) {
	c := newTestChip(t, Options{})
	r := region(t, c, regmap.BlockSPIHost1)

	for i := 0; i < 4; i++ {
		r.Write32(regmap.SPIHostTxDataOffset, 0xaaaaaaaa)
	}
	r.Write32(regmap.SPIHostCommandOffset, mmio.Field32Write(0, regmap.SPIHostCommandLenField, 15))
	status := r.Read32(regmap.SPIHostStatusOffset)
	require.Equal(t, uint32(4), mmio.Field32Read(status, regmap.SPIHostStatusTxQDField))
	require.False(t, mmio.Bit32Read(status, regmap.SPIHostStatusActiveBit))

	r.Write32(regmap.SPIHostControlOffset, 1<<regmap.SPIHostControlSPIEnBit|1<<regmap.SPIHostControlOutputEnBit)
	pollBit(t, r, regmap.SPIHostStatusOffset, regmap.SPIHostStatusTxEmptyBit, 10)
	require.Equal(t, vectors.SPIStatusDone, mmio.WordsToBytes([]uint32{r.Read32(regmap.SPIHostStatusOffset)}))
}

func TestADC_FiltersMatchAfterPowerUp(t *testing.T) {
	c := newTestChip(t, Options{Latency: map[string]time.Duration{regmap.BlockADC: time.Microsecond}})
	r := region(t, c, regmap.BlockADC)

	filter := mmio.Bit32Write(0, regmap.ADCFilterEnableBit, true)
	filter = mmio.Bit32Write(filter, regmap.ADCFilterInRangeBit, true)
	filter = mmio.Field32Write(filter, regmap.ADCFilterMaxField, regmap.ADCMaxVoltage)
	for i := 0; i < regmap.ADCNumFilters; i++ {
		r.Write32(regmap.ADCChn0FilterCtlOffset+uint32(4*i), filter)
		r.Write32(regmap.ADCChn1FilterCtlOffset+uint32(4*i), filter)
	}
	r.Write32(regmap.ADCEnCtlOffset, 1<<regmap.ADCEnCtlEnableBit)
	require.Zero(t, r.Read32(regmap.ADCFilterStatusOffset))
	pollBit(t, r, regmap.ADCFilterStatusOffset, 0, 200)
	require.Equal(t, vectors.ADCFilterStatusAll, mmio.WordsToBytes([]uint32{r.Read32(regmap.ADCFilterStatusOffset)}))
}

func TestCSRNG_ReseedNeedsInstantiate(t *testing.T) {
	c := newTestChip(t, Options{})
	r := region(t, c, regmap.BlockCSRNG)
	reseed := mmio.Field32Write(0, regmap.CSRNGCmdACmdField, regmap.CSRNGCmdReseed)
	reseed = mmio.Field32Write(reseed, regmap.CSRNGCmdFlag0Field, regmap.MultiBitBool4False)

	r.Write32(regmap.CSRNGCmdReqOffset, reseed)
	pollBit(t, r, regmap.CSRNGSwCmdStsOffset, regmap.CSRNGSwCmdStsAckBit, 10)
	require.NotZero(t, mmio.Field32Read(r.Read32(regmap.CSRNGSwCmdStsOffset), regmap.CSRNGSwCmdStsField))

	r.Write32(regmap.CSRNGCmdReqOffset, mmio.Field32Write(0, regmap.CSRNGCmdACmdField, regmap.CSRNGCmdInstantiate))
	pollBit(t, r, regmap.CSRNGSwCmdStsOffset, regmap.CSRNGSwCmdStsAckBit, 10)
	r.Write32(regmap.CSRNGCmdReqOffset, reseed)
	pollBit(t, r, regmap.CSRNGSwCmdStsOffset, regmap.CSRNGSwCmdStsAckBit, 10)
	require.Zero(t, mmio.Field32Read(r.Read32(regmap.CSRNGSwCmdStsOffset), regmap.CSRNGSwCmdStsField))
}

func TestFaults_StuckAndBusy(t *testing.T) {
	c := newTestChip(t, Options{Faults: map[string]Fault{regmap.BlockCSRNG: FaultStuck}})
	r := region(t, c, regmap.BlockCSRNG)
	r.Write32(regmap.CSRNGCmdReqOffset, mmio.Field32Write(0, regmap.CSRNGCmdACmdField, regmap.CSRNGCmdInstantiate))
	for i := 0; i < 1000; i++ {
		require.False(t, mmio.GetBit32(r, regmap.CSRNGSwCmdStsOffset, regmap.CSRNGSwCmdStsAckBit))
	}

	require.NoError(t, c.InjectFault(regmap.BlockAES, FaultBusy))
	aesRegion := region(t, c, regmap.BlockAES)
	require.False(t, mmio.GetBit32(aesRegion, regmap.AESStatusOffset, regmap.AESStatusIdleBit))
}

func TestInjectFault_RejectsUnknownTargets(t *testing.T) {
	c := newTestChip(t, Options{})
	require.Error(t, c.InjectFault("nope", FaultStuck))
	require.Error(t, c.InjectFault(regmap.BlockGPIO, FaultStuck))
	require.Error(t, c.InjectFault(regmap.BlockAES, Fault("melted")))
	_, err := c.Region("nope")
	require.Error(t, err)
	require.Contains(t, c.Blocks(), regmap.BlockSPIHost1)
}

func TestActivity_RecordsCompletionAtTrueTick(t *testing.T) {
	rec := trace.NewRecorder()
	c := newTestChip(t, Options{Sink: rec, Latency: map[string]time.Duration{regmap.BlockCSRNG: 50 * time.Nanosecond}})
	r := region(t, c, regmap.BlockCSRNG)
	r.Write32(regmap.CSRNGCmdReqOffset, mmio.Field32Write(0, regmap.CSRNGCmdACmdField, regmap.CSRNGCmdInstantiate))
	pollBit(t, r, regmap.CSRNGSwCmdStsOffset, regmap.CSRNGSwCmdStsAckBit, 20)
	_ = r.Read32(regmap.CSRNGSwCmdStsOffset)

	done := rec.Trace("p").Filter(trace.EventSubsystemCompleted)
	require.Len(t, done, 1)
	require.Equal(t, regmap.BlockCSRNG, done[0].Subsystem)
	require.Equal(t, 60*time.Nanosecond, done[0].Tick)
}
