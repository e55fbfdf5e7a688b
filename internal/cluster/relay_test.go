package cluster

import "testing"

func TestSnapshotSubjectNamespacesByType(t *testing.T) {
	got := snapshotSubject("netcore.snapshot", "players")
	if got != "netcore.snapshot.players" {
		t.Fatalf("got %q", got)
	}
}

func TestRpcSubjectNamespacesByMethod(t *testing.T) {
	got := rpcSubject("netcore.snapshot", "chat.send")
	if got != "netcore.snapshot.rpc.chat.send" {
		t.Fatalf("got %q", got)
	}
}
