package cmd

import (
	"context"
	"fmt"
	"strings"

	"mxfedl/config"
	"mxfedl/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看MinIO存储桶中的上传文件与EDL文件，支持按前缀过滤、查看统计信息、递归显示目录结构。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg := config.Load()
		if !cfg.MinioEnabled() {
			return fmt.Errorf("MINIO_ENDPOINT is not set")
		}
		fmt.Fprintf(out, "MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		ctx := context.Background()
		store, err := storage.NewMinioStore(ctx, cfg, nil)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		objects, stats, err := store.List(ctx, minioPrefix, minioRecursive || minioStats)
		if err != nil {
			return err
		}

		if minioStats {
			fmt.Fprintf(out, "\n存储桶: %s\n", store.Bucket())
			fmt.Fprintf(out, "对象数量: %d\n", stats.TotalObjects)
			fmt.Fprintf(out, "总大小: %s\n", storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Fprintf(out, "最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
			}
			return nil
		}

		fmt.Fprintf(out, "\n列出存储桶中的文件 (前缀: %s)...\n", minioPrefix)
		rows := make([][]string, 0, len(objects))
		for _, obj := range objects {
			key := obj.Key
			if minioRecursive {
				depth := strings.Count(strings.TrimSuffix(strings.TrimPrefix(obj.Key, minioPrefix), "/"), "/")
				key = strings.Repeat("  ", depth) + key
			}
			rows = append(rows, []string{key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05")})
		}
		fmt.Fprintln(out, renderTable([]string{"KEY", "SIZE", "MODIFIED"}, rows, 1))
		fmt.Fprintf(out, "\n共 %d 个对象\n", len(objects))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "递归显示目录结构")

	minioCmd.Example = `  # 列出所有文件
  mxfedl minio

  # 列出生成的 EDL 文件
  mxfedl minio -p "edl/"

  # 显示存储桶统计信息
  mxfedl minio -s

  # 递归显示上传目录
  mxfedl minio -r -p "uploads/"`
}
