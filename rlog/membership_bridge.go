package rlog

import "github.com/samborder/rlog/membership"

// membershipCommandFor converts an EnterJointConsensus/LeaveJointConsensus
// rlog.Command into the membership.MembershipCommand the Cluster
// collaborator's Apply expects. Called only for those two command kinds;
// any other kind is a programmer error in the caller.
func membershipCommandFor(c Command) membership.MembershipCommand {
	switch c.Kind {
	case CommandEnterJointConsensus:
		bindings := make([]membership.ServerID, len(c.Bindings))
		for i, id := range c.Bindings {
			bindings[i] = membership.ServerID(id)
		}
		return membership.MembershipCommand{
			Kind:        membership.EnterJointConsensus,
			NewBindings: bindings,
		}
	case CommandLeaveJointConsensus:
		return membership.MembershipCommand{Kind: membership.LeaveJointConsensus}
	default:
		return membership.MembershipCommand{}
	}
}
