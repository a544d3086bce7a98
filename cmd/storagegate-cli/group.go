package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/clientcli"
)

var (
	newGroupDomain   string
	newGroupUser     string
	newGroupProject  string
	newGroupCategory string

	listLimit  int
	listAll    bool
	listCursor string
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage dynamic object groups",
}

var groupNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a dynamic object group",
	Long: `Create a dynamic object group and print its id.

The owning user defaults to the token's subject.

Examples:
  storagegate-cli group new -d agcore --project p1
  GROUP=$(storagegate-cli -q group new -d agvideo --project p1 --category renders)`,
	Args: cobra.NoArgs,
	RunE: runGroupNew,
}

var groupShowCmd = &cobra.Command{
	Use:   "show <group-id>",
	Short: "Show a group's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupShow,
}

var groupFinalizeCmd = &cobra.Command{
	Use:   "finalize <group-id>",
	Short: "Close a group to new members",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupFinalize,
}

var groupListCmd = &cobra.Command{
	Use:   "list <group-id>",
	Short: "List the members of a group",
	Long: `List the members of a group in registration order.

Examples:
  storagegate-cli group list 0190a6f2-...
  storagegate-cli group list 0190a6f2-... --limit 10
  storagegate-cli group list 0190a6f2-... --all`,
	Args: cobra.ExactArgs(1),
	RunE: runGroupList,
}

var groupValidateCmd = &cobra.Command{
	Use:   "validate <object-id>",
	Short: "Confirm that a pending object was uploaded",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupValidate,
}

func init() {
	groupNewCmd.Flags().StringVarP(&newGroupDomain, "domain", "d", "", "domain of the group")
	groupNewCmd.Flags().StringVar(&newGroupUser, "user", "", "owning user id (default: token subject)")
	groupNewCmd.Flags().StringVar(&newGroupProject, "project", "", "project id")
	groupNewCmd.Flags().StringVar(&newGroupCategory, "category", "", "category segment of the group prefix")
	_ = groupNewCmd.MarkFlagRequired("domain")

	groupListCmd.Flags().IntVarP(&listLimit, "limit", "l", storagegate.DefaultListLimit, "max results per page (max: 1000)")
	groupListCmd.Flags().BoolVar(&listAll, "all", false, "fetch all pages")
	groupListCmd.Flags().StringVar(&listCursor, "cursor", "", "pagination cursor")

	groupCmd.AddCommand(groupNewCmd)
	groupCmd.AddCommand(groupShowCmd)
	groupCmd.AddCommand(groupFinalizeCmd)
	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupValidateCmd)
}

func runGroupNew(_ *cobra.Command, _ []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	ctx := context.Background()
	id, err := client.NewGroup(ctx, storagegate.NewGroupRequest{
		Domain:    newGroupDomain,
		UserID:    newGroupUser,
		ProjectID: newGroupProject,
		Category:  newGroupCategory,
	})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if quiet {
		return getFormatter().FormatGroup(os.Stdout, storagegate.DynamicObjectGroup{ID: id})
	}

	group, err := client.GetGroup(ctx, id)
	if err != nil {
		return handleError(os.Stderr, err)
	}
	return getFormatter().FormatGroup(os.Stdout, group)
}

func runGroupShow(_ *cobra.Command, args []string) error {
	return withGroup(args[0], func(ctx context.Context, client *clientcli.Client, id uuid.UUID) error {
		group, err := client.GetGroup(ctx, id)
		if err != nil {
			return handleError(os.Stderr, err)
		}
		return getFormatter().FormatGroup(os.Stdout, group)
	})
}

func runGroupFinalize(_ *cobra.Command, args []string) error {
	return withGroup(args[0], func(ctx context.Context, client *clientcli.Client, id uuid.UUID) error {
		group, err := client.FinalizeGroup(ctx, id)
		if err != nil {
			return handleError(os.Stderr, err)
		}
		return getFormatter().FormatGroup(os.Stdout, group)
	})
}

func runGroupList(_ *cobra.Command, args []string) error {
	return withGroup(args[0], func(ctx context.Context, client *clientcli.Client, id uuid.UUID) error {
		result, err := client.List(ctx, clientcli.ListOptions{
			GroupID: id,
			Limit:   listLimit,
			Cursor:  listCursor,
			All:     listAll,
		})
		if err != nil {
			return handleError(os.Stderr, err)
		}
		return getFormatter().FormatList(os.Stdout, result)
	})
}

func runGroupValidate(_ *cobra.Command, args []string) error {
	objectID, err := uuid.Parse(args[0])
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	obj, err := client.Validate(context.Background(), objectID)
	if err != nil {
		return handleError(os.Stderr, err)
	}
	return getFormatter().FormatValidate(os.Stdout, obj)
}

func withGroup(raw string, fn func(ctx context.Context, client *clientcli.Client, id uuid.UUID) error) error {
	id, err := parseGroupID(raw)
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	return fn(context.Background(), client, id)
}
