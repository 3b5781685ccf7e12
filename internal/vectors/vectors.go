// Package vectors holds the golden inputs and expected outputs for every
// subsystem. Cryptographic vectors come from published test suites; the rest
// are fixed patterns whose expected results follow from the block behavior.
package vectors

import (
	"encoding/hex"
	"fmt"
)

// AES-256-CBC, NIST SP 800-38A F.2.5, first block.
var (
	AESKey        = mustHex("603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4")
	AESIV         = mustHex("000102030405060708090a0b0c0d0e0f")
	AESPlaintext  = mustHex("6bc1bee22e409f96e93d7e117393172a")
	AESCiphertext = mustHex("f58c4c04d6e5f1ba779eabfb5f7bfbd6")

	// AESKeyShare1 masks the key; share0 = key XOR share1.
	AESKeyShare1 = mustHex("0f1f2f3f4f5f6f7f8f9fafbfcfdfefff0a1a2a3a4a5a6a7a8a9aaabacadaeafa")
)

// HMAC-SHA256, RFC 4231 test case 6. The 131-byte key is longer than the
// block size, so it is hashed to 32 bytes before use.
var (
	HMACLongKey = repeat(0xaa, 131)
	HMACMessage = []byte("Test Using Larger Than Block-Size Key - Hash Key First")
	HMACDigest  = mustHex("60e431591ee0b67f0d8a26aacbf5b77f8e0bc6213728c5140546040f0ee37f54")
)

// KMAC256, NIST SP 800-185 KMAC sample #6.
var (
	KMACKey           = sequence(0x40, 32)
	KMACMessage       = sequence(0x00, 200)
	KMACCustomization = []byte("My Tagged Application")
	KMACDigest        = mustHex("b58618f71f92e1d56c1b8c55ddd7cd188b97b4ca4d99831eb2699a837da2e4d9" +
		"70fbacfde50033aea585f1a2708510c32d07880801bd182898fe476876fc8965")
)

// KMACOutputBits is L, the requested output length.
const KMACOutputBits = 512

// RSAExponent is the public exponent of the signing key.
const RSAExponent = 65537

// RSA-3072 PKCS#1 v1.5 signature over SHA-256.
var (
	RSAMessage = []byte("Test message for the maximum power epoch signature check")

	RSAModulus = mustHex(
		"c64ab3010747dfa0c3a7c77ebaf2045b3bbfd71b75a6316228ac7dd50f7af357" +
		"13e6ed9610036a7da2794790dbb238ef70425a17e4ca68c120655bebaf121f36" +
		"b32e58bf4f71ba064ceb2223b442414cbe693bd4ecdea611465889c0e2792827" +
		"ba28265226e4c0e08a120831c29ea2d541cd1fc144203f9dbb57b9948da630f7" +
		"27da036c4e346931041523adbff56b04730af9a7aa4b5b43a5cb8f7c43bf508f" +
		"39f32d77c197c27fc6bac5fa6dccd39c6f438090cc793f18bdd881ab5e57624c" +
		"67592538865355fc2150ac104c019ad9477ba395c7c353687c86b8595ce9348e" +
		"6053ef934c6ade3ac1e0e7a6813d1a4fae82d4177c05b3c703305193b3c31ce6" +
		"b85cd29e45a74069ff2bf656504d7b9be0aa1e67db125c468b641ff7a91ed228" +
		"8bc226d331c6db5393833319509c7fc958e0c05e73d157ecae5a35ec58cb224b" +
		"dbf893afdf934aa28bd0983677c84e89b14b748e09f00c02d1a5d07ed14c1713" +
		"0b564a91078c444c9349eda94f610f1edbaa72f7def004b90592478bab2c9c71")
	RSASignature = mustHex(
		"bd935ec4d3cf3776b19aa49a83ba335afc71bc4c12b4e4420476477d60d62762" +
		"4bb2ace49efedc83ca66c291b647c153c68a3a89669fe0d4974e0732afa60952" +
		"e92ba1f455f897d97acbc934f211990161bf5ee0fe6ad66f5eab415cde196b3e" +
		"882a51cf0b43f3587419139106ea933fc91ff692668eecdf452c0f30c4fb9f99" +
		"4398d7262040150306f0b4f509f93cf2d6385650e99792f26f654791cf5210f2" +
		"20e9947671e9f79c0a6212b1b6b34ef85df42089e63323b3670fc47b5ceaf617" +
		"d4eb63a52d9ee0a1b0d69d6837eb80f85f9d3fe8e647d106b50c6ac2be990684" +
		"db0fa4cd06dfeee376f0b8e0264edfbf872ed2746aaecbb6247df7a5a891a656" +
		"4838fd779d73174b56e3b7209359e9c86be8712b75c4926622d50b91eb8dbdc3" +
		"6fb7b319b800612eb753516af47181525ef223a0750ede45369184af17de5108" +
		"00de43f1aaf33842b5e4c35a2d31cc297f984fd85bcc5f31b6be410c3bb3cb51" +
		"1b49502dc85b0fdb0cf72bbaa031768bf0ead77e69a96757dbdff7fd98eea145")
)

// RSAValid is the verifier's result word for a good signature.
var RSAValid = []byte{1}

// I2C parameters. Each host sends FIFO depth - 1 bytes so the address entry
// fits in the same FIFO.
const (
	I2CFifoDepth = 64
	I2CFill      = 0xaa
)

// I2CDeviceAddresses are the two target IDs each host answers to.
var I2CDeviceAddresses = [3][2]uint8{{0x11, 0x22}, {0x33, 0x44}, {0x55, 0x66}}

// I2CMessage is the payload written by, and echoed back to, every I2C host.
var I2CMessage = repeat(I2CFill, I2CFifoDepth-1)

// SPI host TX payload: one full FIFO of the same word.
const (
	SPITxDepth = 72
	SPITxWord  = 0xaaaaaaaa
)

// SPIStatusDone is the final SPI host STATUS (ready, TX empty) as
// little-endian bytes.
var SPIStatusDone = []byte{0x00, 0x00, 0x00, 0x90}

// ADCFilterStatusAll is the filter status with all eight filters on both
// channels matching, as little-endian bytes.
var ADCFilterStatusAll = []byte{0xff, 0xff, 0x00, 0x00}

// CSRNGStatusOK is the software command status after a successful reseed.
var CSRNGStatusOK = []byte{0}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("vectors: bad hex %q: %v", s, err))
	}
	return b
}

func repeat(v byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func sequence(start byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = start + byte(i)
	}
	return out
}
