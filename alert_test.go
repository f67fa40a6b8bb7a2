package hellotls

import (
	"testing"
)

func TestAlert(t *testing.T) {
	assertEquals(t, AlertCloseNotify.String(), "close notify")
	assertEquals(t, AlertCloseNotify.Error(), "close notify")
	assertEquals(t, AlertHandshakeFailure.String(), "handshake failure")
	assertEquals(t, Alert(0xfe).String(), "alert(254)")
}

func TestAlertLevel(t *testing.T) {
	assertEquals(t, AlertLevelWarning.String(), "warning")
	assertEquals(t, AlertLevelFatal.String(), "fatal")
	assertEquals(t, AlertLevel(9).String(), "level(9)")
}

func TestAlertFromWire(t *testing.T) {
	alert, err := alertFromWire(40)
	assertNotError(t, err, "Failed to decode handshake_failure")
	assertEquals(t, alert, AlertHandshakeFailure)

	_, err = alertFromWire(0xfe)
	assertError(t, err, "Decoded an unknown alert description")

	level, err := alertLevelFromWire(2)
	assertNotError(t, err, "Failed to decode fatal level")
	assertEquals(t, level, AlertLevelFatal)

	_, err = alertLevelFromWire(9)
	assertError(t, err, "Decoded an unknown alert level")
}
