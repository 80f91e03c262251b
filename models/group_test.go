package models

import (
	"reflect"
	"testing"
)

func TestGroupMembershipIsCanonical(t *testing.T) {
	group := Group{Members: []string{"@Alice", "bob"}, Admins: []string{"@Alice"}}

	if !group.IsMember("alice") || !group.IsMember("ALICE") {
		t.Fatalf("expected canonical member match")
	}
	if !group.IsAdmin("alice") {
		t.Fatalf("expected canonical admin match")
	}
	if group.IsMember("carol") {
		t.Fatalf("carol is not a member")
	}
}

func TestGroupAddMemberDeduplicates(t *testing.T) {
	group := Group{Members: []string{"alice"}}

	group.AddMember("@Alice")
	group.AddMember("bob")

	if !reflect.DeepEqual(group.Members, []string{"alice", "bob"}) {
		t.Fatalf("unexpected members %v", group.Members)
	}
}

func TestGroupRemoveMemberDropsAdminToo(t *testing.T) {
	group := Group{
		Members: []string{"alice", "bob", "carol"},
		Admins:  []string{"alice", "carol"},
	}

	group.RemoveMember("@Carol")

	if !reflect.DeepEqual(group.Members, []string{"alice", "bob"}) {
		t.Fatalf("unexpected members %v", group.Members)
	}
	if !reflect.DeepEqual(group.Admins, []string{"alice"}) {
		t.Fatalf("expected carol removed from admins in the same update, got %v", group.Admins)
	}
}
