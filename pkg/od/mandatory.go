package od

// BuildMandatory installs every object DS 301 §6 requires a node to
// instantiate and maintain, populated directly from the standard instead of
// parsed from an EDS/XDC file. Callers compile RPDO/TPDO mapping separately,
// once the channel layout for this node is known, via
// network.LocalNode.SetRPDOMapping/SetTPDOMapping.
func BuildMandatory(od *ObjectDictionary, nodeID uint8) {
	od.AddEntry(NewVarEntry(IdxDeviceType, "NMT_DeviceType_U32", NewVariable(
		"DeviceType", 0, UNSIGNED32, AccessReadOnly, PDOMapNone, EncodeUint(0, UNSIGNED32))))

	od.AddEntry(NewVarEntry(IdxErrorRegister, "ERR_ErrorRegister_U8", NewVariable(
		"ErrorRegister", 0, UNSIGNED8, AccessReadOnly, PDOMapDefault, []byte{0})))

	od.AddEntry(NewVarEntry(IdxCycleLength, "NMT_CycleLen_U32", NewVariable(
		"CycleLen", 0, UNSIGNED32, AccessReadWrite, PDOMapNone, EncodeUint(0, UNSIGNED32))))

	od.AddEntry(buildIdentity())

	od.AddEntry(NewVarEntry(IdxVerifyConfiguration, "NMT_ResetCnt_REC", NewVariable(
		"ConfDate", 0, UNSIGNED32, AccessReadWrite, PDOMapNone, EncodeUint(0, UNSIGNED32))))

	od.AddEntry(buildInterfaceParameters())

	od.AddEntry(NewVarEntry(IdxSDOSequenceTimeout, "SDO_SequLayerTimeout_U32", NewVariable(
		"SequLayerTimeout", 0, UNSIGNED32, AccessReadWrite, PDOMapNone, EncodeUint(100, UNSIGNED32))))

	od.AddEntry(buildDiagnosticRecord())

	od.AddEntry(NewVarEntry(IdxNodeAssignment, "NMT_NodeAssignment_AU32", NewVariable(
		"NodeAssignment", 0, UNSIGNED32, AccessReadWrite, PDOMapNone, EncodeUint(0, UNSIGNED32))))

	od.AddEntry(NewVarEntry(IdxFeatureFlags, "NMT_FeatureFlags_U32", NewVariable(
		"FeatureFlags", 0, UNSIGNED32, AccessReadOnly, PDOMapNone, EncodeUint(0, UNSIGNED32))))

	od.AddEntry(NewVarEntry(IdxNMTCurrentState, "NMT_CurrNMTState_U8", NewVariable(
		"CurrNMTState", 0, UNSIGNED8, AccessReadOnly, PDOMapDefault, []byte{0})))

	od.AddEntry(buildPResPayloadLimits())

	od.AddEntry(buildCycleTimingRecord())

	od.AddEntry(NewVarEntry(IdxCNBusyTimeout, "NMT_CNBusyTimeout_U32", NewVariable(
		"CNBusyTimeout", 0, UNSIGNED32, AccessReadWrite, PDOMapNone, EncodeUint(10000, UNSIGNED32))))

	od.AddEntry(NewVarEntry(IdxHostname, "NMT_HostName_VSTR", NewVariable(
		"HostName", 0, VISIBLE_STRING, AccessReadWrite, PDOMapNone, []byte{})))

	od.AddEntry(NewVarEntry(IdxNMTResetCause, "NMT_ResetCause_U8", NewVariable(
		"ResetCause", 0, UNSIGNED8, AccessReadOnly, PDOMapNone, []byte{0})))

	od.AddEntry(buildRestoreDefaults())

	for sub := uint8(0x0A); sub <= 0x0F; sub++ {
		od.AddEntry(buildDLLErrorThreshold(sub))
	}
}

func buildIdentity() *Entry {
	vendorID := NewVariable("VendorId", 1, UNSIGNED32, AccessReadOnly, PDOMapNone, EncodeUint(0, UNSIGNED32))
	productCode := NewVariable("ProductCode", 2, UNSIGNED32, AccessReadOnly, PDOMapNone, EncodeUint(0, UNSIGNED32))
	revisionNo := NewVariable("RevisionNo", 3, UNSIGNED32, AccessReadOnly, PDOMapNone, EncodeUint(0, UNSIGNED32))
	serialNo := NewVariable("SerialNo", 4, UNSIGNED32, AccessReadOnly, PDOMapNone, EncodeUint(0, UNSIGNED32))
	return NewRecordEntry(IdxIdentity, "NMT_IdentityObject_REC", []*Variable{vendorID, productCode, revisionNo, serialNo})
}

func buildInterfaceParameters() *Entry {
	mtu := NewVariable("InterfaceMTU", 1, UNSIGNED16, AccessReadOnly, PDOMapNone, EncodeUint(1500, UNSIGNED16))
	typ := NewVariable("InterfaceType", 2, UNSIGNED8, AccessReadOnly, PDOMapNone, []byte{6})
	return NewRecordEntry(IdxInterfaceBase, "NWL_IpAddrTable_Xh_REC", []*Variable{mtu, typ})
}

func buildDiagnosticRecord() *Entry {
	locked := NewVariable("ErrorCnt", 1, UNSIGNED32, AccessReadOnly, PDOMapNone, EncodeUint(0, UNSIGNED32))
	threshold := NewVariable("Threshold", 2, UNSIGNED32, AccessReadWrite, PDOMapNone, EncodeUint(0, UNSIGNED32))
	return NewRecordEntry(IdxDiagnosticBase, "DIA_ErrStatistics_REC", []*Variable{locked, threshold})
}

func buildPResPayloadLimits() *Entry {
	actual := NewVariable("PResActPayloadLimit", 1, UNSIGNED16, AccessReadOnly, PDOMapNone, EncodeUint(36, UNSIGNED16))
	maxLimit := NewVariable("PResMaxPayloadLimit", 2, UNSIGNED16, AccessReadOnly, PDOMapNone, EncodeUint(1490, UNSIGNED16))
	return NewRecordEntry(IdxPResPayloadLimits, "NMT_PResPayloadLimitList_AU16", []*Variable{actual, maxLimit})
}

func buildCycleTimingRecord() *Entry {
	idleCount := NewVariable("IdleCount", 1, UNSIGNED32, AccessReadOnly, PDOMapNone, EncodeUint(0, UNSIGNED32))
	jitter := NewVariable("CycleCountMax", 2, UNSIGNED32, AccessReadOnly, PDOMapNone, EncodeUint(0, UNSIGNED32))
	return NewRecordEntry(IdxCycleTimingRecord, "NMT_CycleTiming_REC", []*Variable{idleCount, jitter})
}

func buildRestoreDefaults() *Entry {
	all := NewVariable("RestoreAllDefaultParameters", 1, UNSIGNED32, AccessReadWrite, PDOMapNone, EncodeUint(0, UNSIGNED32))
	return NewRecordEntry(IdxRestoreDefaults, "NMT_RestoreDefaultParameters_REC", []*Variable{all})
}

func buildDLLErrorThreshold(sub uint8) *Entry {
	threshold := NewVariable("Threshold", 1, UNSIGNED32, AccessReadWrite, PDOMapNone, EncodeUint(15, UNSIGNED32))
	cumulative := NewVariable("CumulativeCnt", 2, UNSIGNED32, AccessReadOnly, PDOMapNone, EncodeUint(0, UNSIGNED32))
	entry := NewRecordEntry(IdxDLLErrorThreshBase+uint16(sub)-0x0A, "DLL_MNCycTimeExceed_REC", []*Variable{threshold, cumulative})
	return entry
}
