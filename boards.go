package main

import (
	"fmt"
	"strconv"

	"github.com/serroba/online-board/internal/acl"
	"github.com/serroba/online-board/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func boardsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "boards", Short: "Manage boards"}
	cmd.AddCommand(boardsListCmd())
	cmd.AddCommand(boardsCreateCmd())
	cmd.AddCommand(boardsRenameCmd())
	cmd.AddCommand(boardsMembersCmd())
	cmd.AddCommand(boardsShareCmd())
	cmd.AddCommand(boardsUnshareCmd())

	return cmd
}

func boardsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List boards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			boards, err := newClient(cfg).Boards(cmd.Context())
			if err != nil {
				return err
			}

			return printBoards(boards)
		},
	}
}

func boardsCreateCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			b, err := newClient(cfg).CreateBoard(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}

			return printBoards([]storage.Board{b})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "board id (assigned by the relay when zero)")

	return cmd
}

func boardsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseBoardID(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			b, err := newClient(cfg).RenameBoard(cmd.Context(), boardID, args[1])
			if err != nil {
				return err
			}

			return printBoards([]storage.Board{b})
		},
	}
}

func boardsMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members ID",
		Short: "List the members of a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseBoardID(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			members, err := newClient(cfg).Members(cmd.Context(), boardID)
			if err != nil {
				return err
			}

			return printMembers(members)
		},
	}
}

func boardsShareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share ID EMAIL ROLE",
		Short: "Grant a user viewer, editor or owner access to a board",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseBoardID(args[0])
			if err != nil {
				return err
			}

			role, err := acl.ParseRole(args[2])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			member, err := newClient(cfg).SetMember(cmd.Context(), boardID, args[1], role)
			if err != nil {
				return err
			}

			return printMembers([]acl.Member{member})
		},
	}
}

func boardsUnshareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unshare ID EMAIL",
		Short: "Remove a user from a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseBoardID(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			return newClient(cfg).RemoveMember(cmd.Context(), boardID, args[1])
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Print the confirmed objects and chat of a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseBoardID(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client := newClient(cfg)

			objects, err := client.BoardObjects(cmd.Context(), boardID)
			if err != nil {
				return err
			}

			messages, err := client.BoardMessages(cmd.Context(), boardID)
			if err != nil {
				return err
			}

			if viper.GetBool("json") {
				return printJSON(map[string]any{"objects": objects, "messages": messages})
			}

			printObjects(objects)
			printMessages(messages)

			return nil
		},
	}
}

func parseBoardID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid board id %q", s)
	}

	return id, nil
}
