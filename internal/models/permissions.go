package models

const (
	PermKickMembers     int64 = 1 << 1
	PermBanMembers      int64 = 1 << 2
	PermAdministrator   int64 = 1 << 3
	PermManageChannels  int64 = 1 << 4
	PermManageGuild     int64 = 1 << 5
	PermManageRoles     int64 = 1 << 28
	PermModerateMembers int64 = 1 << 40
)

const DangerousPermissions = PermAdministrator | PermManageGuild | PermManageRoles |
	PermManageChannels | PermKickMembers | PermBanMembers

func AddedPermissions(before, after int64) int64 {
	return (before ^ after) & after
}

func HasDangerous(perms int64) bool {
	return perms&DangerousPermissions != 0
}

// DangerousAdded returns the dangerous bits present in after but not in before.
func DangerousAdded(before, after int64) int64 {
	return AddedPermissions(before, after) & DangerousPermissions
}
