package pipeline

import "errors"

var errProtocolsConfigureNotOwner = errors.New("pipeline: only the tenant owner may submit ProtocolsConfigure")
var errProtocolsConfigureSuperseded = errors.New("pipeline: configuration lost the largest-messageCid collision and did not become current")
