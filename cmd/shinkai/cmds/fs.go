package cmds

import (
	"context"
	"path"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/shinkai/pkg/api"
	"github.com/go-go-golems/shinkai/pkg/viewstate"
)

func newFSCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fs",
		Short: "Work with the vector file system of the node",
	}

	var depth int
	lsCmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := viewstate.HomePath
			if len(args) > 0 {
				p = args[0]
			}
			items, err := env.Client.ListDirectoryContents(cmd.Context(), api.ListDirectoryRequest{Path: p, Depth: depth})
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), items)
		},
	}
	lsCmd.Flags().IntVar(&depth, "depth", 1, "How many levels of children to include")
	cmd.AddCommand(lsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "mkdir <path> <name>",
		Short: "Create a folder named name inside path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.Client.CreateFolder(cmd.Context(), api.CreateFolderRequest{
				Path:       args[0],
				FolderName: args[1],
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "mv <origin> <destination-folder>",
		Short: "Move an item or a folder into another folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			origin, err := findItem(ctx, env.Client, args[0])
			if err != nil {
				return err
			}

			selection := viewstate.NewFolderSelection()
			if err := selectFolder(ctx, env.Client, selection, args[1]); err != nil {
				return err
			}
			dest, err := selection.ValidateMove(origin.Path)
			if err != nil {
				return err
			}

			req := api.MoveRequest{OriginPath: origin.Path, DestinationPath: dest}
			if origin.IsDirectory {
				return env.Client.MoveFolder(ctx, req)
			}
			return env.Client.MoveItem(ctx, req)
		},
	})

	var yes bool
	rmCmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove an item or a folder with everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := env.confirm("Remove " + args[0] + "?")
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			return env.Client.RemoveItem(cmd.Context(), args[0])
		},
	}
	rmCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(rmCmd)

	return cmd
}

// findItem looks p up in the listing of its parent folder.
func findItem(ctx context.Context, client *api.Client, p string) (api.DirectoryContent, error) {
	p = path.Clean("/" + p)
	if p == viewstate.HomePath {
		return api.DirectoryContent{Name: "", Path: p, IsDirectory: true}, nil
	}
	items, err := client.ListDirectoryContents(ctx, api.ListDirectoryRequest{Path: path.Dir(p)})
	if err != nil {
		return api.DirectoryContent{}, err
	}
	for _, item := range items {
		if item.Path == p {
			return item, nil
		}
	}
	return api.DirectoryContent{}, errors.Errorf("%s not found", p)
}

// selectFolder makes p, which must be a folder, the destination of selection.
func selectFolder(ctx context.Context, client *api.Client, selection *viewstate.FolderSelection, p string) error {
	selection.Home()
	p = path.Clean("/" + p)
	if p == viewstate.HomePath {
		return nil
	}

	item, err := findItem(ctx, client, p)
	if err != nil {
		return err
	}
	if !item.IsDirectory {
		return errors.Errorf("%s is not a folder", p)
	}
	selection.Enter(item)
	return nil
}
