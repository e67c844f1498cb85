package main

import (
	"fmt"
	"os"

	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"github.com/jimp5978/dshi-field-app/internal/ecs/service"
	"github.com/jimp5978/dshi-field-app/internal/shared/cache"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "테이블 생성/갱신",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.db.AutoMigrate(entity.All()...); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrate 완료")
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "사용자 관리",
	}
	cmd.AddCommand(userCreateCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var (
		username string
		fullName string
		company  string
		password string
		level    int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "사용자 생성 (비밀번호 기본값 1234)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			users := service.NewUserService(e.repos.User, e.logger)
			// CLI는 관리자 권한으로 실행한다
			admin := lifecycle.Actor{Username: "ecs-admin", Level: lifecycle.LevelAdmin}
			u, err := users.Create(cmd.Context(), admin, service.UserInput{
				Username:        username,
				FullName:        &fullName,
				Company:         &company,
				Password:        &password,
				PermissionLevel: &level,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "사용자 생성: %s (id=%d, level=%d)\n", u.Username, u.ID, u.PermissionLevel)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "사용자명")
	cmd.Flags().StringVar(&fullName, "full-name", "", "이름")
	cmd.Flags().StringVar(&company, "company", "", "소속")
	cmd.Flags().StringVar(&password, "password", "", "비밀번호, 비우면 1234")
	cmd.Flags().IntVar(&level, "level", 1, "권한 레벨 1~5")
	cmd.MarkFlagRequired("username")
	return cmd
}

func importAssembliesCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import-assemblies <file.xlsx>",
		Short: "엑셀 조립품 마스터 import",
		Long: `엑셀 조립품 마스터를 assembly_code 기준으로 등록/갱신합니다.

'arup' 시트가 있으면 그 시트를, 없으면 첫 번째 시트를 읽습니다.
헤더 이름(ASSEMBLY, COMPANY, ZONE, ITEM, WEIGHT, FIT-UP ... ARUP PAINT)으로 열을 찾습니다.
N/A와 1900년 날짜는 해당 없는 공정으로 저장됩니다.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open file: %w", err)
			}
			defer f.Close()

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			assemblies := service.NewAssemblyService(e.repos.Assembly, e.repos.Inspection,
				cache.NewNamespace(e.searchStore(), service.SearchCachePrefix, e.cfg.Search.CacheTTL), e.cfg.Search.Limit, e.logger)
			res, err := assemblies.Import(cmd.Context(), f, replace)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "import 완료: %d건, 코드 없음 %d건", res.Imported, res.Skipped)
			if replace {
				fmt.Fprintf(out, ", 기존 %d건 삭제", res.Deleted)
			}
			fmt.Fprintln(out)
			for _, w := range res.Warnings {
				fmt.Fprintln(out, "  경고:", w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "기존 조립품을 모두 지우고 새로 입력")
	return cmd
}
